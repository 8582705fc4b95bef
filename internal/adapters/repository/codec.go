package repository

import (
	"encoding/json"
	"fmt"

	"github.com/okian/tiergate/internal/domain/feedback"
)

func encodeVerdict(c *feedback.Collection) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal verdict: %w", err)
	}
	return b, nil
}

func decodeVerdict(b []byte) (*feedback.Collection, error) {
	if len(b) == 0 {
		return nil, nil
	}
	c := feedback.NewCollection()
	if err := json.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("unmarshal verdict: %w", err)
	}
	return c, nil
}
