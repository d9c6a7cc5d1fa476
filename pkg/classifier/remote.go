package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// scoreResponse is the model server's wire format: one softmax score vector
// per head, produced by scoring the same model against each vocabulary.
type scoreResponse struct {
	SpeciesScores []float64 `json:"species_scores"`
	DiseaseScores []float64 `json:"disease_scores"`
}

// Remote is a Classifier backed by a model-serving HTTP endpoint.
type Remote struct {
	baseURL string
	client  *http.Client
	species []string
	disease []string
}

// NewRemote creates a classifier client for the given model server.
func NewRemote(baseURL string, species, disease []string, timeout time.Duration) (*Remote, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("classifier URL is required")
	}
	if len(species) == 0 || len(disease) == 0 {
		return nil, fmt.Errorf("both label vocabularies are required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Remote{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		species: species,
		disease: disease,
	}, nil
}

// Labels returns the species and disease vocabularies.
func (r *Remote) Labels() (species, disease []string) {
	return r.species, r.disease
}

// Classify sends the image to the model server and decodes both heads.
func (r *Remote) Classify(ctx context.Context, img []byte) (*Result, error) {
	mime, err := SniffImage(img)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/predict", bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", mime)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: model server rejected payload", ErrInvalidImage)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: model server returned %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var scores scoreResponse
	if err := json.Unmarshal(body, &scores); err != nil {
		return nil, fmt.Errorf("%w: bad score payload: %v", ErrUnavailable, err)
	}

	speciesPred, err := decodeHead(scores.SpeciesScores, r.species)
	if err != nil {
		return nil, fmt.Errorf("%w: species head: %v", ErrUnavailable, err)
	}
	diseasePred, err := decodeHead(scores.DiseaseScores, r.disease)
	if err != nil {
		return nil, fmt.Errorf("%w: disease head: %v", ErrUnavailable, err)
	}

	return newResult(speciesPred, diseasePred), nil
}

var _ Classifier = (*Remote)(nil)
