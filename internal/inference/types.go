package inference

import "time"

// Prediction is a single classifier label with its confidence percentage.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"` // percentage in [0,100]
}

// Config holds the configuration for the inference client.
type Config struct {
	URL         string
	APIKey      string
	Timeout     time.Duration
	RateLimitMS int
}

// DefaultConfig returns the default inference client configuration.
func DefaultConfig() Config {
	return Config{
		URL:         "http://localhost:8501/v1/classify",
		Timeout:     30 * time.Second,
		RateLimitMS: 100,
	}
}

// classifyResponse is the wire format of the classifier service. Some
// deployments wrap the label map in a predictions field, older ones return
// the bare map; both are accepted.
type classifyResponse struct {
	Predictions map[string]float64 `json:"predictions"`
}
