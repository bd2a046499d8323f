package settings

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
)

type fakeSecrets struct {
	secretsmanageriface.SecretsManagerAPI
	output *secretsmanager.GetSecretValueOutput
	err    error
	asked  string
}

func (f *fakeSecrets) GetSecretValue(input *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
	f.asked = aws.StringValue(input.SecretId)
	return f.output, f.err
}

func TestLoadSecretString(t *testing.T) {
	svc := &fakeSecrets{output: &secretsmanager.GetSecretValueOutput{
		SecretString: aws.String(`{"db_password": "s3cret", "influx_username": "writer"}`),
	}}
	config := Default()
	config.SecretName = "optionlab/prod"
	config.Database.User = "keep"

	if err := LoadSecret(&config, svc); err != nil {
		t.Fatal(err)
	}
	if svc.asked != "optionlab/prod" {
		t.Errorf("asked for %q", svc.asked)
	}
	if config.Database.Password != "s3cret" || config.Influx.Username != "writer" {
		t.Errorf("secret not applied: %+v %+v", config.Database, config.Influx)
	}
	if config.Database.User != "keep" {
		t.Errorf("empty secret field overwrote user: %q", config.Database.User)
	}
}

func TestLoadSecretBinary(t *testing.T) {
	raw := []byte(`{"db_user": "bin"}`)
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(encoded, raw)
	svc := &fakeSecrets{output: &secretsmanager.GetSecretValueOutput{SecretBinary: encoded}}

	config := Default()
	config.SecretName = "bin"
	if err := LoadSecret(&config, svc); err != nil {
		t.Fatal(err)
	}
	if config.Database.User != "bin" {
		t.Errorf("expected user bin, got %q", config.Database.User)
	}
}

func TestLoadSecretErrors(t *testing.T) {
	failure := errors.New("denied")
	config := Default()
	config.SecretName = "missing"
	if err := LoadSecret(&config, &fakeSecrets{err: failure}); !errors.Is(err, failure) {
		t.Errorf("expected the client error, got %v", err)
	}

	config = Default()
	if err := LoadSecret(&config, &fakeSecrets{err: failure}); err != nil {
		t.Errorf("no secret name should skip loading, got %v", err)
	}
}
