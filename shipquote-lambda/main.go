// Command shipquote-lambda serves shipping quotes from API Gateway.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rei1089/ec-ring/pkg/config"
	"github.com/rei1089/ec-ring/pkg/logger"
	"github.com/rei1089/ec-ring/pkg/shipping"
	"go.uber.org/zap"
)

var log *zap.Logger

func init() {
	env := config.LoadEnv(nil)

	var err error
	log, err = logger.New(env, config.GetEnv("LOG_LEVEL", "info"), zap.String("service", "shipquote-lambda"))
	if err != nil {
		panic(err)
	}
}

type quoteRequest struct {
	Country      string   `json:"country"`
	TotalWeightG *float64 `json:"totalWeightG"`
}

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

var jsonHeaders = map[string]string{
	"Content-Type":                 "application/json",
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, POST",
	"Access-Control-Allow-Headers": "Content-Type",
}

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	l := logger.FromContext(ctx, log).With(zap.String("method", request.HTTPMethod), zap.String("path", request.Path))
	l.Info("received request")

	switch {
	case request.HTTPMethod == http.MethodGet && strings.HasSuffix(request.Path, "/countries"):
		return respond(l, http.StatusOK, map[string]interface{}{"countries": shipping.Countries()}), nil
	case request.HTTPMethod == http.MethodPost && strings.HasSuffix(request.Path, "/quote"):
		return quote(l, request), nil
	default:
		return respond(l, http.StatusNotFound, errorBody{Error: "Not found", Code: "not_found"}), nil
	}
}

func quote(l *zap.Logger, request events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var req quoteRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return respond(l, http.StatusBadRequest, errorBody{Error: "invalid JSON body", Code: "invalid_request"})
	}
	if req.Country == "" || req.TotalWeightG == nil {
		return respond(l, http.StatusBadRequest, errorBody{Error: "country and totalWeightG are required", Code: "invalid_request"})
	}

	q, err := shipping.Calculate(req.Country, *req.TotalWeightG)
	switch {
	case errors.Is(err, shipping.ErrUnsupportedDestination):
		return respond(l, http.StatusBadRequest, errorBody{Error: "Unsupported destination", Code: "unsupported_destination", Details: err.Error()})
	case errors.Is(err, shipping.ErrInvalidWeight):
		return respond(l, http.StatusBadRequest, errorBody{Error: "Invalid weight", Code: "invalid_weight", Details: err.Error()})
	case err != nil:
		l.Error("quote failed", zap.Error(err))
		return respond(l, http.StatusInternalServerError, errorBody{Error: "Internal server error", Code: "internal_error"})
	}
	return respond(l, http.StatusOK, q)
}

func respond(l *zap.Logger, status int, body interface{}) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		l.Error("failed to marshal response", zap.Error(err))
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    jsonHeaders,
			Body:       `{"error":"Failed to format response","code":"internal_error"}`,
		}
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    jsonHeaders,
		Body:       string(raw),
	}
}

func main() {
	defer log.Sync()
	lambda.Start(handler)
}
