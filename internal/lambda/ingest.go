package lambda

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/turbolytics/cataloger/internal/ingest"
)

// Acknowledgement is returned to the invoking trigger once every object of
// a notification has been catalogued.
type Acknowledgement struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type Ingester interface {
	Handle(ctx context.Context, raw []byte) (ingest.Result, error)
}

type IngestHandler struct {
	ingester Ingester
	logger   *zap.Logger
}

func NewIngestHandler(ingester Ingester, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{
		ingester: ingester,
		logger:   logger,
	}
}

// Invoke returns an error on any fetch or store failure so the platform
// redelivers the event.
func (h *IngestHandler) Invoke(ctx context.Context, raw json.RawMessage) (Acknowledgement, error) {
	l := h.logger.With(zap.String("invocation_id", invocationID(ctx)))

	res, err := h.ingester.Handle(ctx, raw)
	if err != nil {
		l.Error("ingest failed",
			zap.Int("targets", res.Targets),
			zap.Int("stored", res.Stored),
			zap.Error(err),
		)
		return Acknowledgement{}, err
	}

	l.Info("ingest complete",
		zap.Int("targets", res.Targets),
		zap.Int("stored", res.Stored),
	)
	return Acknowledgement{StatusCode: http.StatusOK, Body: "ok"}, nil
}

func invocationID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return uuid.New().String()
}
