package inference

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cattle-scans/backend/internal/errors"
)

const testURL = "http://classifier.test/v1/classify"

// newMockedClient returns a client whose transport is intercepted by httpmock.
func newMockedClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(Config{URL: testURL, RateLimitMS: 1})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	return client
}

func TestClassifyRanksDeterministically(t *testing.T) {
	client := newMockedClient(t)
	httpmock.RegisterResponder("POST", testURL,
		httpmock.NewStringResponder(200, `{"predictions":{"Sahiwal":10.1,"Gir":82.3,"Tharparkar":10.1}}`))

	predictions, err := client.Classify(context.Background(), []byte("jpeg"))
	require.NoError(t, err)

	require.Len(t, predictions, 3)
	assert.Equal(t, "Gir", predictions[0].Label)
	assert.InDelta(t, 82.3, predictions[0].Confidence, 0.001)
	// Equal confidence resolves by ascending label.
	assert.Equal(t, "Sahiwal", predictions[1].Label)
	assert.Equal(t, "Tharparkar", predictions[2].Label)
}

func TestClassifyAcceptsBareLabelMap(t *testing.T) {
	client := newMockedClient(t)
	httpmock.RegisterResponder("POST", testURL,
		httpmock.NewStringResponder(200, `{"Gir":82.3}`))

	predictions, err := client.Classify(context.Background(), []byte("jpeg"))
	require.NoError(t, err)
	require.Len(t, predictions, 1)
	assert.Equal(t, "Gir", predictions[0].Label)
}

func TestClassifyEmptyResult(t *testing.T) {
	client := newMockedClient(t)
	httpmock.RegisterResponder("POST", testURL,
		httpmock.NewStringResponder(200, `{}`))

	_, err := client.Classify(context.Background(), []byte("jpeg"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryInference))
}

func TestClassifyMalformedBody(t *testing.T) {
	client := newMockedClient(t)
	httpmock.RegisterResponder("POST", testURL,
		httpmock.NewStringResponder(200, `not json`))

	_, err := client.Classify(context.Background(), []byte("jpeg"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryInference))
}

func TestClassifyNonSuccessStatus(t *testing.T) {
	client := newMockedClient(t)
	httpmock.RegisterResponder("POST", testURL,
		httpmock.NewStringResponder(503, `overloaded`))

	_, err := client.Classify(context.Background(), []byte("jpeg"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryInference))
	assert.Contains(t, err.Error(), "503")
}

func TestClassifyRejectsEmptyImage(t *testing.T) {
	client := newMockedClient(t)

	_, err := client.Classify(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestClassifySendsAPIKey(t *testing.T) {
	client, err := NewClient(Config{URL: testURL, APIKey: "secret", RateLimitMS: 1})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	var sawAuth string
	httpmock.RegisterResponder("POST", testURL,
		func(req *http.Request) (*http.Response, error) {
			sawAuth = req.Header.Get("Authorization")
			return httpmock.NewStringResponse(200, `{"Gir":82.3}`), nil
		})

	_, err = client.Classify(context.Background(), []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", sawAuth)
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
