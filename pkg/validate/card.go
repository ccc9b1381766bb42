package validate

import (
	"github.com/ShiraazMoollatjie/goluhn"
)

// IsCardNumber reports whether s passes the Luhn check digit.
func IsCardNumber(s string) bool {
	err := goluhn.Validate(s)
	return err == nil
}
