package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	httpMaxRetries    = 2
	httpBaseRetryWait = 250 * time.Millisecond
	maxBodyBytes      = 1 << 20
)

// HTTPJSONMeta is the resolution metadata of an http_json market.
//
// Field is a dotted path into the response body ("data.result", "items.0.v").
// Answers maps the field's string form to an answer label. Without Answers
// the field is read as a number and compared to Threshold: values >= Threshold
// resolve to Above, lower values to Below.
type HTTPJSONMeta struct {
	URL              string            `json:"url"`
	Field            string            `json:"field"`
	Answers          map[string]string `json:"answers,omitempty"`
	Threshold        *float64          `json:"threshold,omitempty"`
	Above            string            `json:"above,omitempty"`
	Below            string            `json:"below,omitempty"`
	FinalWhenMissing bool              `json:"finalWhenMissing,omitempty"`
}

// Validate checks that the metadata can ever produce an answer
func (m HTTPJSONMeta) Validate() error {
	if m.URL == "" || m.Field == "" {
		return fmt.Errorf("http_json: url and field are required")
	}
	if len(m.Answers) == 0 && (m.Threshold == nil || m.Above == "" || m.Below == "") {
		return fmt.Errorf("http_json: either answers or threshold/above/below is required")
	}
	return nil
}

// ValidateMeta checks the metadata shape and that every label it can
// resolve to is one of the market's answers
func (o *HTTPJSONOracle) ValidateMeta(raw json.RawMessage, answerA, answerB string) error {
	var meta HTTPJSONMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return fmt.Errorf("http_json: decode meta: %w", err)
	}
	if err := meta.Validate(); err != nil {
		return err
	}
	u, err := url.Parse(meta.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("http_json: url %q must be an absolute http(s) url", meta.URL)
	}

	isAnswer := func(label string) bool { return label == answerA || label == answerB }
	if len(meta.Answers) > 0 {
		for value, label := range meta.Answers {
			if !isAnswer(label) {
				return fmt.Errorf("http_json: value %q maps to %q, which is not an answer", value, label)
			}
		}
		return nil
	}
	if !isAnswer(meta.Above) || !isAnswer(meta.Below) {
		return fmt.Errorf("http_json: above %q and below %q must both be answers", meta.Above, meta.Below)
	}
	if meta.Above == meta.Below {
		return fmt.Errorf("http_json: above and below must differ")
	}
	return nil
}

// HTTPJSONOracle reads a single field from a JSON endpoint
type HTTPJSONOracle struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPJSONOracle creates an oracle making at most ratePerSec requests
func NewHTTPJSONOracle(timeout time.Duration, ratePerSec float64) *HTTPJSONOracle {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	return &HTTPJSONOracle{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}
}

func (o *HTTPJSONOracle) Resolve(ctx context.Context, raw json.RawMessage) (Outcome, error) {
	var meta HTTPJSONMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Outcome{}, fmt.Errorf("http_json: decode meta: %w", err)
	}
	if err := meta.Validate(); err != nil {
		return Outcome{}, err
	}

	var body any
	if err := o.fetch(ctx, meta.URL, &body); err != nil {
		return Outcome{}, err
	}

	value, ok := lookupPath(body, meta.Field)
	if !ok || value == nil {
		if meta.FinalWhenMissing {
			return NoOutcome(), nil
		}
		return Pending(), nil
	}

	if len(meta.Answers) > 0 {
		if label, ok := meta.Answers[stringify(value)]; ok {
			return Answer(label), nil
		}
		// the source answered with something that maps to no side
		return NoOutcome(), nil
	}

	n, ok := toFloat(value)
	if !ok {
		return NoOutcome(), nil
	}
	if n >= *meta.Threshold {
		return Answer(meta.Above), nil
	}
	return Answer(meta.Below), nil
}

func (o *HTTPJSONOracle) fetch(ctx context.Context, url string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= httpMaxRetries; attempt++ {
		if err := o.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("http_json: rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("http_json: build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := o.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			retry, err := decodeResponse(resp, out)
			if err == nil {
				return nil
			}
			if !retry {
				return err
			}
			lastErr = err
		}

		if attempt < httpMaxRetries {
			log.Warn().Err(lastErr).Int("attempt", attempt+1).Str("url", url).Msg("[Oracle] retrying")
			if !sleep(ctx, attempt) {
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("http_json: %s: %w", url, lastErr)
}

// decodeResponse reports whether a failed response is worth retrying
func decodeResponse(resp *http.Response, out any) (bool, error) {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, fmt.Errorf("status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("http_json: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return false, fmt.Errorf("http_json: decode body: %w", err)
	}
	return false, nil
}

func sleep(ctx context.Context, attempt int) bool {
	t := time.NewTimer(time.Duration(math.Pow(2, float64(attempt))) * httpBaseRetryWait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// lookupPath walks a dotted path through decoded JSON. Numeric segments index
// arrays.
func lookupPath(v any, path string) (any, bool) {
	for _, seg := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			v = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			v = node[i]
		default:
			return nil, false
		}
	}
	return v, true
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
