package utils

import (
	"reflect"
	"strings"

	"github.com/ttacon/libphonenumber"
)

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

func UniqueSlice[T comparable](in []T) []T {
	seen := make(map[T]bool, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// NormalizePhone parses and formats a phone number in E.164.
// Region defaults to GB when the number has no country code.
func NormalizePhone(raw string, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if region == "" {
		region = "GB"
	}
	num, err := libphonenumber.Parse(raw, region)
	if err != nil {
		return "", err
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}
