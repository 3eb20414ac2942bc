package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"mailevents/internal/observability"
	"mailevents/internal/ses"
)

const maxHookBody = 256 << 10

type Enqueuer interface {
	Enqueue(ctx context.Context, deliveryID string, event json.RawMessage) error
}

// SESHook receives SES event notifications delivered by SNS (or posted
// directly) and queues them for the worker.
type SESHook struct {
	Queue Enqueuer
	HTTP  *http.Client
	// ConfirmAllowed vets SubscribeURL before it is fetched. Defaults to
	// https URLs on amazonaws.com.
	ConfirmAllowed func(u *url.URL) bool

	BasicUser     string
	BasicPassword string
}

func (h *SESHook) Register(r *mux.Router) {
	sub := r.PathPrefix("/v1/hooks").Subrouter()
	sub.Use(BasicAuth(h.BasicUser, h.BasicPassword))
	sub.HandleFunc("/ses", h.handle).Methods(http.MethodPost)
}

func (h *SESHook) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxHookBody))
	if err != nil {
		http.Error(w, ErrBadBody, http.StatusBadRequest)
		return
	}

	env, ev, raw, err := ses.ParseBody(body)
	msgType := ses.SNSNotification
	if env != nil {
		msgType = env.Type
	}
	if err != nil {
		observability.IngestRequests.WithLabelValues(msgType, "invalid").Inc()
		slog.Warn("ses hook rejected", "err", err, "sns_type", msgType)
		if errors.Is(err, ses.ErrMissingMessageID) {
			http.Error(w, ErrMissingID, http.StatusBadRequest)
			return
		}
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}

	if ev == nil {
		h.handleControl(r.Context(), env)
		observability.IngestRequests.WithLabelValues(msgType, "ok").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.Queue.Enqueue(r.Context(), ev.Mail.MessageID, raw); err != nil {
		observability.Enqueues.WithLabelValues("error").Inc()
		observability.IngestRequests.WithLabelValues(msgType, "error").Inc()
		slog.Error("ses hook enqueue failed", "err", err, "ses_email_id", ev.Mail.MessageID, "event_type", ev.EventType)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	observability.Enqueues.WithLabelValues("ok").Inc()
	observability.IngestRequests.WithLabelValues(msgType, "ok").Inc()
	w.WriteHeader(http.StatusOK)
}

func (h *SESHook) handleControl(ctx context.Context, env *ses.SNSMessage) {
	if env.Type != ses.SNSSubscriptionConfirmation {
		slog.Info("sns control message ignored", "sns_type", env.Type, "topic_arn", env.TopicArn)
		return
	}
	u, err := url.Parse(env.SubscribeURL)
	if err != nil || !h.confirmAllowed(u) {
		slog.Warn("sns subscribe url rejected", "subscribe_url", env.SubscribeURL, "topic_arn", env.TopicArn)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		slog.Error("sns confirm request failed", "err", err)
		return
	}
	client := h.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		slog.Error("sns subscription confirm failed", "err", err, "topic_arn", env.TopicArn)
		return
	}
	_ = resp.Body.Close()
	slog.Info("sns subscription confirmed", "topic_arn", env.TopicArn, "status", resp.StatusCode)
}

func (h *SESHook) confirmAllowed(u *url.URL) bool {
	if h.ConfirmAllowed != nil {
		return h.ConfirmAllowed(u)
	}
	return u.Scheme == "https" && strings.HasSuffix(u.Hostname(), ".amazonaws.com")
}
