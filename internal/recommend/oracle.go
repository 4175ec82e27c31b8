package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"aramcoach/internal/champion"
)

// ErrOracle marks a scoring backend failure: unreachable service, wrong
// prediction count, or probabilities outside [0,1].
var ErrOracle = errors.New("scoring oracle failure")

// Oracle scores candidate team compositions. Score returns one win
// probability per input vector, in input order.
type Oracle interface {
	Score(ctx context.Context, teams []champion.Vector) ([]float64, error)
}

// HTTPOracle scores compositions against a TensorFlow Serving style
// endpoint: POST {"instances": [...]} in, {"predictions": [[pWin, pLose]]}
// out.
type HTTPOracle struct {
	url        string
	httpClient *http.Client
}

// NewHTTPOracle points at a serving endpoint, e.g.
// http://localhost:8501/v1/models/aram:predict.
func NewHTTPOracle(url string, httpClient *http.Client) *HTTPOracle {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPOracle{url: url, httpClient: httpClient}
}

func (o *HTTPOracle) Score(ctx context.Context, teams []champion.Vector) ([]float64, error) {
	if len(teams) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(struct {
		Instances []champion.Vector `json:"instances"`
	}{Instances: teams})
	if err != nil {
		return nil, fmt.Errorf("encode scoring request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracle, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: service returned status %d", ErrOracle, resp.StatusCode)
	}

	var out struct {
		Predictions [][]float64 `json:"predictions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrOracle, err)
	}
	if len(out.Predictions) != len(teams) {
		return nil, fmt.Errorf("%w: %d predictions for %d teams", ErrOracle, len(out.Predictions), len(teams))
	}

	probs := make([]float64, len(out.Predictions))
	for i, p := range out.Predictions {
		if len(p) == 0 {
			return nil, fmt.Errorf("%w: empty prediction at index %d", ErrOracle, i)
		}
		// The model head is [win, lose] softmax; the first column is the
		// win probability.
		win := p[0]
		if win < 0 || win > 1 {
			return nil, fmt.Errorf("%w: prediction %g at index %d outside [0,1]", ErrOracle, win, i)
		}
		probs[i] = win
	}
	return probs, nil
}
