package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http
// Set QUEUE_BACKEND=sqs: a Lambda freezes between invocations, so the local
// queue would never drain.

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"resume-feedback/internal/bootstrap"
	"resume-feedback/internal/shared/config"
	"resume-feedback/internal/shared/server/respond"
)

type proxyFunc func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

var (
	initOnce sync.Once
	initErr  error
	proxy    proxyFunc
)

func initApp() {
	cfg := config.Load()
	if cfg.QueueBackend == config.QueueLocal {
		log.Printf("QUEUE_BACKEND=local under Lambda: analyses will not run until a worker consumes them")
	}
	app, err := bootstrap.Build(context.Background(), cfg)
	if err != nil {
		initErr = err
		return
	}
	proxy = ginadapter.NewV2(app.Router).ProxyWithContext
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	initOnce.Do(initApp)
	return serve(ctx, proxy, initErr, req)
}

func serve(ctx context.Context, p proxyFunc, bootErr error, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if bootErr != nil {
		log.Printf("bootstrap error: %v", bootErr)
		return errorResponse("bootstrap_failed", "service failed to start"), bootErr
	}
	if p == nil {
		return errorResponse("not_initialized", "router not initialized"), nil
	}
	return p(ctx, req)
}

func errorResponse(code, message string) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(respond.ErrorResponse{Error: respond.ErrorBody{Code: code, Message: message}})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func main() {
	lambda.Start(handler)
}
