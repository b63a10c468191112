package taskargs

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/ybirader/unarchive"
)

var ErrUnsupportedParameter = errors.New("unsupported parameter")

// ToRequest validates args and builds the extraction request. src and dest are
// mandatory and copy defaults to true.
func ToRequest(args map[string]string) (unarchive.Request, error) {
	req := unarchive.Request{Copy: true}

	var unknown []string
	for key, value := range args {
		switch key {
		case "src":
			req.Src = value
		case "dest":
			req.Dest = value
		case "creates":
			req.Creates = value
		case "mode":
			req.Mode = value
		case "copy":
			b, err := ParseBool(value)
			if err != nil {
				return unarchive.Request{}, errors.Wrap(err, "copy")
			}
			req.Copy = b
		case "format":
			format, err := unarchive.ParseFormat(value)
			if err != nil {
				return unarchive.Request{}, err
			}
			req.Format = format
		default:
			unknown = append(unknown, key)
		}
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return unarchive.Request{}, errors.Wrapf(ErrUnsupportedParameter, "%s", strings.Join(unknown, ", "))
	}

	switch {
	case req.Src == "":
		return unarchive.Request{}, errors.New("missing required argument: src")
	case req.Dest == "":
		return unarchive.Request{}, errors.New("missing required argument: dest")
	}

	return req, nil
}

// ParseBool accepts the boolean spellings task files use.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "on", "y":
		return true, nil
	case "no", "false", "0", "off", "n":
		return false, nil
	default:
		return false, errors.Errorf("%q is not a boolean", s)
	}
}
