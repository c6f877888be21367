package push

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/appleboy/go-fcm"
	"github.com/classpulse/classpulse-server/config"
	"github.com/classpulse/classpulse-server/models"
	"k8s.io/klog/v2"
)

// Dispatcher partitions validated tokens into bounded chunks and sends them
// over whichever transport was resolved at startup. One chunk's failure
// never aborts its siblings; failures become values in the chunk result.
type Dispatcher struct {
	transport    Transport
	issuer       *TokenIssuer
	legacyClient *fcm.Client
	v1URLFormat  string
}

type DispatcherOption func(*Dispatcher)

// WithLegacyEndpoint points the legacy client at a different URL (tests)
func WithLegacyEndpoint(endpoint string) DispatcherOption {
	return func(d *Dispatcher) {
		if t, ok := d.transport.(*LegacyKeyTransport); ok {
			client, err := fcm.NewClient(t.ServerKey,
				fcm.WithHTTPClient(&http.Client{Timeout: config.RequestTimeout}),
				fcm.WithEndpoint(endpoint),
			)
			if err == nil {
				d.legacyClient = client
			}
		}
	}
}

// WithV1Endpoint overrides the v1 send URL format (tests)
func WithV1Endpoint(urlFormat string) DispatcherOption {
	return func(d *Dispatcher) {
		d.v1URLFormat = urlFormat
	}
}

// WithTokenIssuer swaps the access token issuer (tests)
func WithTokenIssuer(issuer *TokenIssuer) DispatcherOption {
	return func(d *Dispatcher) {
		d.issuer = issuer
	}
}

func NewDispatcher(transport Transport, opts ...DispatcherOption) (*Dispatcher, error) {
	d := &Dispatcher{
		transport:   transport,
		v1URLFormat: config.FCMV1SendURLFormat,
	}
	switch t := transport.(type) {
	case *ServiceAccountTransport:
		d.issuer = NewTokenIssuer(t)
	case *LegacyKeyTransport:
		client, err := fcm.NewClient(t.ServerKey,
			fcm.WithHTTPClient(&http.Client{Timeout: config.RequestTimeout}),
			fcm.WithEndpoint(config.FCMLegacySendURL),
		)
		if err != nil {
			return nil, err
		}
		d.legacyClient = client
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Transport exposes the resolved credential strategy
func (d *Dispatcher) Transport() Transport {
	return d.transport
}

// ChunkTokens partitions tokens into groups of at most size
func ChunkTokens(tokens []string, size int) [][]string {
	if size <= 0 || len(tokens) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(tokens)+size-1)/size)
	for start := 0; start < len(tokens); start += size {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, tokens[start:end])
	}
	return chunks
}

// Dispatch sends a message to already-validated tokens and aggregates the
// per-chunk outcomes. An empty token list yields a zero report without
// touching the transport; an unresolved transport yields ErrNotConfigured.
func (d *Dispatcher) Dispatch(tokens []string, message *models.NotificationMessage) (*models.DispatchReport, error) {
	report := &models.DispatchReport{
		OriginalTokens: len(tokens),
		ValidTokens:    len(tokens),
	}
	if len(tokens) == 0 {
		return report, nil
	}
	if d.transport == nil {
		return report, ErrNotConfigured
	}

	// Each batch authenticates once; re-issuance failure fails the call
	var accessToken string
	if sa, ok := d.transport.(*ServiceAccountTransport); ok {
		token, err := d.issuer.AccessToken()
		if err != nil {
			return report, err
		}
		accessToken = token
		klog.V(3).Infof("Dispatching %d tokens via v1 transport for project %s", len(tokens), sa.ProjectID)
	} else {
		klog.V(3).Infof("Dispatching %d tokens via legacy transport", len(tokens))
	}

	chunks := ChunkTokens(tokens, config.ChunkSize)
	results := make([]models.ChunkResult, len(chunks))

	workers := len(chunks)
	if workers > config.MaxDispatchWorkers {
		workers = config.MaxDispatchWorkers
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = d.sendChunk(idx, chunks[idx], message, accessToken)
			}
		}()
	}
	for idx := range chunks {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	for _, result := range results {
		report.TotalSent += result.Sent
		report.TotalFailed += result.Failed
	}
	report.ChunkResults = results
	return report, nil
}

func (d *Dispatcher) sendChunk(idx int, chunk []string, message *models.NotificationMessage, accessToken string) models.ChunkResult {
	switch d.transport.(type) {
	case *LegacyKeyTransport:
		return d.sendLegacyChunk(idx, chunk, message)
	case *ServiceAccountTransport:
		return d.sendV1Chunk(idx, chunk, message, accessToken)
	}
	return models.ChunkResult{Index: idx, Failed: len(chunk), Err: ErrNotConfigured}
}

// sendLegacyChunk issues one multi-token request; the legacy API natively
// takes registration_ids and answers with a per-index results array
func (d *Dispatcher) sendLegacyChunk(idx int, chunk []string, message *models.NotificationMessage) models.ChunkResult {
	data := make(map[string]interface{}, len(message.Data))
	for k, v := range message.Data {
		data[k] = v
	}
	msg := &fcm.Message{
		RegistrationIDs:  chunk,
		Priority:         "high",
		ContentAvailable: true,
		Data:             data,
		Notification: &fcm.Notification{
			Title: message.Title,
			Body:  message.Body,
			Sound: "default",
		},
	}
	resp, err := d.legacyClient.Send(msg)
	if err != nil {
		klog.Errorf("Error sending legacy chunk %d: %v", idx, err)
		return models.ChunkResult{Index: idx, Failed: len(chunk), Err: err}
	}
	result := ReconcileLegacyChunk(chunk, resp)
	result.Index = idx
	return result
}

// sendV1Chunk fans a chunk out as one request per token. The v1 message
// schema takes a single token, so a chunk of N becomes N requests bounded
// by a small in-flight window.
func (d *Dispatcher) sendV1Chunk(idx int, chunk []string, message *models.NotificationMessage, accessToken string) models.ChunkResult {
	sa := d.transport.(*ServiceAccountTransport)
	sendURL := fmt.Sprintf(d.v1URLFormat, sa.ProjectID)

	result := models.ChunkResult{Index: idx}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, config.V1ChunkConcurrency)

	for _, token := range chunk {
		wg.Add(1)
		sem <- struct{}{}
		go func(token string) {
			defer wg.Done()
			defer func() { <-sem }()
			sent, permanent := d.sendV1Message(sendURL, accessToken, token, message)
			mu.Lock()
			defer mu.Unlock()
			if sent {
				result.Sent++
				return
			}
			result.Failed++
			if permanent {
				result.InvalidTokens = append(result.InvalidTokens, token)
			}
		}(token)
	}
	wg.Wait()
	return result
}

// sendV1Message reports whether the send succeeded and, if not, whether the
// provider marked the token permanently dead
func (d *Dispatcher) sendV1Message(sendURL, accessToken, token string, message *models.NotificationMessage) (bool, bool) {
	payload := models.V1SendRequest{
		Message: models.V1Message{
			Token: token,
			Notification: &models.V1Notification{
				Title: message.Title,
				Body:  message.Body,
			},
			Data: message.Data,
			Android: &models.V1AndroidConfig{
				Priority: "high",
				Notification: &models.V1AndroidNotification{
					Sound: "default",
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		klog.Errorf("Error marshalling v1 message: %v", err)
		return false, false
	}

	request, err := http.NewRequest(http.MethodPost, sendURL, bytes.NewReader(body))
	if err != nil {
		klog.Errorf("Error building v1 request: %v", err)
		return false, false
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := Client.Do(request)
	if err != nil {
		// Timeouts and connection errors are transient by definition
		klog.Errorf("Error sending v1 message: %v", err)
		return false, false
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		klog.Errorf("Error reading v1 response: %v", err)
		return false, false
	}
	if resp.StatusCode == http.StatusOK {
		return true, false
	}

	var sendResp models.V1SendResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil || sendResp.Error == nil {
		klog.Errorf("v1 send returned %d with unparseable body: %s", resp.StatusCode, respBody)
		return false, false
	}
	permanent := PermanentV1Error(sendResp.Error)
	if !permanent {
		klog.Errorf("v1 send failed transiently (%s): %s", sendResp.Error.Status, sendResp.Error.Message)
	}
	return false, permanent
}
