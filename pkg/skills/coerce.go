package skills

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

func parseNumber(token string) (float64, error) {
	n, err := strconv.ParseFloat(strings.TrimSpace(token), 64)
	if err != nil {
		return 0, errors.Errorf("%q is not a number", token)
	}
	if math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, errors.Errorf("%q is not a finite number", token)
	}
	return n, nil
}

func parseBool(token string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "true", "1", "yes", "y", "on":
		return true, nil
	case "false", "0", "no", "n", "off":
		return false, nil
	}
	return false, errors.Errorf("%q is not a boolean (use true or false)", token)
}
