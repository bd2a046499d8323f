package utils

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/fatih/structs"
	"github.com/tantralabs/optionlab/models"
)

// CalculateDifference returns the percentage difference of x from y. It is
// undefined when y is zero; callers check for that.
func CalculateDifference(x float64, y float64) float64 {
	return (x - y) / y
}

// PctChange returns the day over day percentage changes of a series. Changes
// from a zero value are undefined and left out.
func PctChange(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	changes := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		changes = append(changes, CalculateDifference(values[i], values[i-1]))
	}
	return changes
}

func round(num float64) int {
	return int(num + math.Copysign(0.5, num))
}

func ToFixed(num float64, precision int) float64 {
	output := math.Pow(10, float64(precision))
	return float64(round(num*output)) / output
}

// RoundToNearest rounds num to the closest multiple of interval.
func RoundToNearest(num float64, interval float64) float64 {
	return math.Round(num/interval) * interval
}

// CreateKeyValuePairs make a string interface human readable. Keys are sorted
// so the output is stable between runs.
func CreateKeyValuePairs(m map[string]interface{}, ignoreLowerCase bool, oldBytes ...*bytes.Buffer) string {
	var b *bytes.Buffer
	if len(oldBytes) > 0 {
		b = oldBytes[0]
	} else {
		b = new(bytes.Buffer)
	}
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fmt.Fprint(b, "\n{\n")
	for _, key := range keys {
		value := m[key]
		firstLetter := string(key[0])
		upperCaseFirstLetter := strings.ToUpper(firstLetter)
		if !ignoreLowerCase || upperCaseFirstLetter == firstLetter {
			rv := reflect.ValueOf(value)
			if rv.Kind() == reflect.Struct && structs.IsStruct(value) {
				fmt.Fprint(b, " ", key, ": ")
				CreateKeyValuePairs(structs.Map(value), ignoreLowerCase, b)
			} else {
				fmt.Fprint(b, " ", key, ": ", value, ",\n")
			}
		}
	}
	fmt.Fprint(b, "}\n")
	return b.String()
}

// StructToKeyValuePairs formats the exported fields of a struct.
func StructToKeyValuePairs(s interface{}) string {
	return CreateKeyValuePairs(structs.Map(s), true)
}

// TradingDays lists the weekdays from start to end inclusive.
func TradingDays(start time.Time, end time.Time) []time.Time {
	var days []time.Time
	for day := models.TruncateDay(start); !day.After(models.TruncateDay(end)); day = day.AddDate(0, 0, 1) {
		if !models.IsWeekend(day) {
			days = append(days, day)
		}
	}
	return days
}

// ParseDate parses a yyyy-mm-dd date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q, expected yyyy-mm-dd", models.ErrInvalidArgument, s)
	}
	return t, nil
}
