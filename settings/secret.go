package settings

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/tantralabs/optionlab/logger"
)

// Secret holds the credentials kept out of config files. Empty fields leave
// the config untouched.
type Secret struct {
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"db_password"`
	InfluxUsername string `json:"influx_username"`
	InfluxPassword string `json:"influx_password"`
}

// Apply copies the non empty credentials into the config.
func (s Secret) Apply(c *Config) {
	if s.DBUser != "" {
		c.Database.User = s.DBUser
	}
	if s.DBPassword != "" {
		c.Database.Password = s.DBPassword
	}
	if s.InfluxUsername != "" {
		c.Influx.Username = s.InfluxUsername
	}
	if s.InfluxPassword != "" {
		c.Influx.Password = s.InfluxPassword
	}
}

// NewSecretsClient creates a Secrets Manager client for region.
func NewSecretsClient(region string) (secretsmanageriface.SecretsManagerAPI, error) {
	sess, err := session.NewSession(aws.NewConfig().WithRegion(region))
	if err != nil {
		return nil, err
	}
	return secretsmanager.New(sess), nil
}

// GetSecret fetches the current version of a secret as a string, decoding
// binary secrets.
func GetSecret(svc secretsmanageriface.SecretsManagerAPI, secretName string) (string, error) {
	input := &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretName),
		VersionStage: aws.String("AWSCURRENT"),
	}

	result, err := svc.GetSecretValue(input)
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok {
			logger.Errorf("Could not get secret %s: %s %s\n", secretName, aerr.Code(), aerr.Message())
		}
		return "", fmt.Errorf("getting secret %s: %w", secretName, err)
	}

	if result.SecretString != nil {
		return *result.SecretString, nil
	}
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(result.SecretBinary)))
	n, err := base64.StdEncoding.Decode(decoded, result.SecretBinary)
	if err != nil {
		return "", fmt.Errorf("decoding secret %s: %w", secretName, err)
	}
	return string(decoded[:n]), nil
}

// LoadSecret fetches the secret named in the config and applies it. It does
// nothing when no secret is configured.
func LoadSecret(c *Config, svc secretsmanageriface.SecretsManagerAPI) error {
	if c.SecretName == "" {
		return nil
	}
	if svc == nil {
		var err error
		svc, err = NewSecretsClient(c.SecretRegion)
		if err != nil {
			return err
		}
	}
	raw, err := GetSecret(svc, c.SecretName)
	if err != nil {
		return err
	}
	var secret Secret
	if err := json.Unmarshal([]byte(raw), &secret); err != nil {
		return fmt.Errorf("parsing secret %s: %w", c.SecretName, err)
	}
	secret.Apply(c)
	logger.Infof("Loaded credentials from secret %s\n", c.SecretName)
	return nil
}
