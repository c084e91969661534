package lambda

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/turbolytics/cataloger/internal/query"
)

// QueryHandler serves the catalog routes behind an API Gateway proxy
// integration.
type QueryHandler struct {
	service *query.Service
	logger  *zap.Logger
}

func NewQueryHandler(service *query.Service, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		service: service,
		logger:  logger,
	}
}

func (h *QueryHandler) Invoke(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	page, err := h.service.Handle(ctx, request(req))
	resp := query.NewResponse(page, err)

	if resp.StatusCode >= http.StatusInternalServerError {
		h.logger.Error("query failed",
			zap.String("invocation_id", invocationID(ctx)),
			zap.String("path", req.Path),
			zap.Error(err),
		)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers(),
		Body:       string(resp.Body),
	}, nil
}

// request picks the query mode: a sourceSystem path parameter selects the
// by-source listing, otherwise the container window is read from the query
// string.
func request(req events.APIGatewayProxyRequest) query.Request {
	// API Gateway delivers path parameters already decoded.
	if ss := req.PathParameters["sourceSystem"]; ss != "" {
		return query.Request{SourceSystem: ss}
	}

	q := req.QueryStringParameters
	container := q["container"]
	if container == "" {
		container = q["bucket"]
	}
	return query.Request{
		Container: container,
		Start:     q["start"],
		End:       q["end"],
	}
}
