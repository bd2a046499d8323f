package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tantralabs/optionlab/models"
)

// searchFlags collects repeated -param name=min:max:step flags.
type searchFlags []models.SearchParameter

func (f *searchFlags) String() string {
	parts := make([]string, len(*f))
	for i, p := range *f {
		parts[i] = fmt.Sprintf("%s=%v:%v:%v", p.Name, p.Min, p.Max, p.Step)
	}
	return strings.Join(parts, ",")
}

func (f *searchFlags) Set(value string) error {
	p, err := parseSearchParameter(value)
	if err != nil {
		return err
	}
	*f = append(*f, p)
	return nil
}

func parseSearchParameter(value string) (models.SearchParameter, error) {
	name, bounds, ok := strings.Cut(value, "=")
	fields := strings.Split(bounds, ":")
	if !ok || name == "" || len(fields) != 3 {
		return models.SearchParameter{}, fmt.Errorf("%w: expected name=min:max:step, got %q", models.ErrInvalidArgument, value)
	}
	var nums [3]float64
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return models.SearchParameter{}, fmt.Errorf("%w: %s is not a number in %q", models.ErrInvalidArgument, field, value)
		}
		nums[i] = v
	}
	p := models.NewSearchParameter(strings.TrimSpace(name), nums[0], nums[1], nums[2])
	return p, p.Validate()
}
