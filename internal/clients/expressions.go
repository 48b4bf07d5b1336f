package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andresmejia3/moodlens/internal/emotion"
	"github.com/andresmejia3/moodlens/internal/types"
)

// --- Expressions (/expressions) ---

// Expressions posts one JPEG frame and returns the raw service answer.
func (h *HTTP) Expressions(ctx context.Context, frame []byte) (*types.ExpressionResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/expressions", bytes.NewReader(frame))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "application/json")

	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		const maxErr = 4096
		lb := io.LimitReader(resp.Body, maxErr)
		body, _ := io.ReadAll(lb)
		var er types.ErrorResult
		if json.Unmarshal(body, &er) == nil && er.Error != "" {
			return nil, fmt.Errorf("expressions %s: %s", resp.Status, er.Error)
		}
		return nil, fmt.Errorf("expressions %s: %s",
			resp.Status, strings.TrimSpace(string(body)))
	}

	var out types.ExpressionResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("expressions decode: %w", err)
	}
	return &out, nil
}

// Classify implements monitor.Classifier.
func (h *HTTP) Classify(ctx context.Context, frame []byte) (emotion.Scores, bool, error) {
	res, err := h.Expressions(ctx, frame)
	if err != nil {
		return nil, false, err
	}
	if !res.Face {
		return nil, false, nil
	}
	return res.Scores(), true, nil
}
