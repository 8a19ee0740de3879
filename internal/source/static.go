package source

import "context"

// Static always reports the same label.
type Static string

// CurrentStatus returns the fixed label.
func (s Static) CurrentStatus(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return string(s), nil
}
