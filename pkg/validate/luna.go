package validate

import (
	"fmt"

	"github.com/ShiraazMoollatjie/goluhn"
)

// IsLuna reports whether s is a Luhn-valid digit string.
func IsLuna(s string) bool {
	err := goluhn.Validate(s)
	return err == nil
}

// LuhnNumber returns a random Luhn-valid number of the given length that
// starts with prefix.
func LuhnNumber(prefix string, length int) (string, error) {
	filler := length - len(prefix) - 1
	if filler < 1 {
		return "", fmt.Errorf("length %d too short for prefix %q", length, prefix)
	}
	_, number, err := goluhn.Calculate(prefix + goluhn.Generate(filler))
	if err != nil {
		return "", err
	}
	return number, nil
}
