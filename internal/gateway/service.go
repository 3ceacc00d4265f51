// Package gateway wires alias resolution, the model directory, provider
// clients, and the response cache into the chat operations the transport
// handlers call.
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/averba/model-relay/internal/alias"
	"github.com/averba/model-relay/internal/cache"
	"github.com/averba/model-relay/internal/directory"
	"github.com/averba/model-relay/internal/httpclient"
	"github.com/averba/model-relay/internal/llm"
	"github.com/averba/model-relay/internal/relay"
	"github.com/averba/model-relay/internal/resolver"
	"github.com/averba/model-relay/internal/tokens"
	"github.com/averba/model-relay/pkg/api"
)

// maxLoggedBody truncates upstream error bodies in logs and problem
// extensions.
const maxLoggedBody = 512

type Service struct {
	log      *zap.Logger
	aliases  *alias.Table
	dir      directory.Directory
	resolver *resolver.Resolver
	cache    cache.Cache
	cacheTTL time.Duration
	counter  *tokens.Counter

	mu        sync.RWMutex
	providers map[string]llm.Provider
}

// NewService builds the service. respCache may be nil to disable response
// caching.
func NewService(log *zap.Logger, aliases *alias.Table, dir directory.Directory, respCache cache.Cache, cacheTTL time.Duration) *Service {
	return &Service{
		log:       log,
		aliases:   aliases,
		dir:       dir,
		resolver:  resolver.New(aliases),
		cache:     respCache,
		cacheTTL:  cacheTTL,
		counter:   tokens.NewCounter(),
		providers: make(map[string]llm.Provider),
	}
}

// bindingKey identifies one provider client: records sharing a backend
// type and endpoint share a client.
func bindingKey(provider directory.Provider, endpointURL string) string {
	return string(provider) + "|" + endpointURL
}

// Bootstrap creates a provider client for every distinct binding in the
// directory snapshot. Individual failures are logged and skipped so one
// bad record does not take the whole service down.
func (s *Service) Bootstrap() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	registered := 0
	for _, rec := range s.dir.Active() {
		key := bindingKey(rec.Provider, rec.EndpointURL)
		if _, exists := s.providers[key]; exists {
			continue
		}

		p, err := llm.New(llm.ProviderConfig{
			ID:      key,
			Type:    rec.Provider,
			BaseURL: rec.EndpointURL,
			APIKey:  rec.APIKeyRef,
		})
		if err != nil {
			s.log.Error("Failed to initialize provider",
				zap.String("provider", string(rec.Provider)),
				zap.String("model", rec.ID),
				zap.Error(err),
			)
			continue
		}

		s.providers[key] = p
		registered++
		s.log.Info("Registered provider",
			zap.String("provider", string(rec.Provider)),
			zap.String("endpoint", rec.EndpointURL),
		)
	}

	if registered == 0 {
		s.log.Warn("No providers were registered; chat requests will fail until a model is configured")
	}
	return registered
}

func (s *Service) providerFor(rm resolver.ResolvedModel) (llm.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.providers[bindingKey(rm.Provider, rm.EndpointURL)]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("provider %q configured but not loaded", rm.Provider)
}

// resolve maps the requested model name to a provider binding, translating
// resolution failures into client-facing problems.
func (s *Service) resolve(requestedModel string) (resolver.ResolvedModel, llm.Provider, error) {
	rm, err := s.resolver.Resolve(requestedModel, s.dir)
	if err != nil {
		if errors.Is(err, resolver.ErrNoModelAvailable) {
			return resolver.ResolvedModel{}, nil, api.NoModelError(err)
		}
		return resolver.ResolvedModel{}, nil, api.InternalError("model resolution failed", err)
	}

	p, err := s.providerFor(rm)
	if err != nil {
		return resolver.ResolvedModel{}, nil, api.NoModelError(err)
	}

	return rm, p, nil
}

func toLLMRequest(req *api.ChatRequest, internalID string) *llm.Request {
	return &llm.Request{
		Model:       internalID,
		Messages:    req.Messages,
		Temperature: req.Temp(),
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
	}
}

// ValidateMessages rejects transcripts with no usable prompt. Binding
// already guarantees a non-empty array; this catches arrays of blank
// content.
func ValidateMessages(messages []api.ChatMessage) error {
	for _, m := range messages {
		if m.Content != "" {
			return nil
		}
	}
	return api.BadRequestError("no usable prompt in messages")
}

// Chat performs a non-streaming completion. The returned response's model
// field carries the name the client asked for, not the internal id the
// upstream call was made with.
func (s *Service) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	if err := ValidateMessages(req.Messages); err != nil {
		return nil, err
	}

	rm, provider, err := s.resolve(req.Model)
	if err != nil {
		return nil, err
	}

	sess := relay.NewSession(relay.TransportSSE, req.Model, rm.InternalID)
	sess.Provider = string(rm.Provider)

	cacheKey, cacheable := s.chatCacheKey(req, rm.InternalID)
	if cacheable {
		var cached api.ChatResponse
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			cached.ID = sess.ID
			cached.Model = sess.OriginalModel
			s.log.Debug("Chat served from cache", zap.String("model", rm.InternalID))
			return &cached, nil
		}
	}

	start := time.Now()
	text, usage, err := provider.Generate(ctx, toLLMRequest(req, rm.InternalID))
	if err != nil {
		return nil, s.upstreamProblem(err, rm)
	}

	if usage == nil {
		usage = s.counter.Usage(req.Messages, text)
	}

	resp := &api.ChatResponse{
		ID:      sess.ID,
		Object:  "chat.completion",
		Created: sess.CreatedAt.Unix(),
		Model:   sess.OriginalModel,
		Choices: []api.Choice{{
			Index:        0,
			Message:      &api.ChatMessage{Role: "assistant", Content: text},
			FinishReason: "stop",
		}},
		Usage: usage,
	}

	if cacheable {
		if err := s.cache.Set(ctx, cacheKey, resp, s.cacheTTL); err != nil {
			s.log.Warn("Failed to cache chat response", zap.Error(err))
		}
	}

	s.log.Info("Chat completed",
		zap.String("model", sess.OriginalModel),
		zap.String("resolved_model", rm.InternalID),
		zap.String("provider", string(rm.Provider)),
		zap.Int("completion_tokens", usage.CompletionTokens),
		zap.Duration("duration", time.Since(start)),
	)

	return resp, nil
}

// OpenStream resolves the request and opens the upstream stream. The
// caller owns driving the relay engine over the returned channel.
// Resolution and upstream-connect failures surface here, synchronously,
// before any success header is committed downstream.
func (s *Service) OpenStream(ctx context.Context, req *api.ChatRequest, transport relay.Transport) (*relay.Session, <-chan llm.StreamResult, error) {
	if err := ValidateMessages(req.Messages); err != nil {
		return nil, nil, err
	}

	rm, provider, err := s.resolve(req.Model)
	if err != nil {
		return nil, nil, err
	}

	stream, err := provider.Stream(ctx, toLLMRequest(req, rm.InternalID))
	if err != nil {
		return nil, nil, s.upstreamProblem(err, rm)
	}

	sess := relay.NewSession(transport, req.Model, rm.InternalID)
	sess.Provider = string(rm.Provider)
	return sess, stream, nil
}

// upstreamProblem maps a provider failure onto a 502 problem. The truncated
// upstream body is logged and surfaced as an extension so callers can see
// what the backend actually said.
func (s *Service) upstreamProblem(err error, rm resolver.ResolvedModel) error {
	var upstreamErr *httpclient.UpstreamError
	if errors.As(err, &upstreamErr) {
		s.log.Warn("Upstream call failed",
			zap.String("provider", string(rm.Provider)),
			zap.Int("status", upstreamErr.StatusCode),
			zap.String("body", upstreamErr.TruncatedBody(maxLoggedBody)),
		)
		return api.ProviderError(
			fmt.Sprintf("upstream returned status %d", upstreamErr.StatusCode),
			err,
			api.WithExtension("upstream_body", upstreamErr.TruncatedBody(maxLoggedBody)),
		)
	}
	return api.ProviderError("upstream request failed", err)
}

// chatCacheKey returns a stable key for cacheable requests. Only
// deterministic requests (temperature 0) are cached.
func (s *Service) chatCacheKey(req *api.ChatRequest, internalID string) (string, bool) {
	if s.cache == nil || req.Temp() != 0 {
		return "", false
	}

	payload, err := json.Marshal(struct {
		Model     string            `json:"model"`
		Messages  []api.ChatMessage `json:"messages"`
		MaxTokens int               `json:"max_tokens"`
	}{internalID, req.Messages, req.MaxTokens})
	if err != nil {
		return "", false
	}

	sum := sha256.Sum256(payload)
	return "chat:" + hex.EncodeToString(sum[:]), true
}

// ListModels returns the union of alias names and configured internal
// model ids, so clients see both the names they hardcode and the real
// tags behind them.
func (s *Service) ListModels() api.ModelList {
	created := time.Now().Unix()
	seen := make(map[string]bool)
	var models []api.Model

	for _, ext := range s.aliases.ExternalIDs() {
		seen[ext] = true
		models = append(models, api.Model{
			ID:      ext,
			Object:  "model",
			Created: created,
			OwnedBy: "model-relay",
		})
	}

	for _, rec := range s.dir.Active() {
		if seen[rec.InternalModelID] {
			continue
		}
		seen[rec.InternalModelID] = true
		models = append(models, api.Model{
			ID:      rec.InternalModelID,
			Object:  "model",
			Created: created,
			OwnedBy: string(rec.Provider),
		})
	}

	return api.ModelList{Object: "list", Data: models}
}

// Counter exposes the usage estimator for handlers that log streamed
// completions.
func (s *Service) Counter() *tokens.Counter {
	return s.counter
}
