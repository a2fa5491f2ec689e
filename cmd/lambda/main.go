package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointmentbot/internal/app"
	"stealthcompany.com/appointmentbot/internal/serverless"
)

func main() {
	cfg, err := app.Init("appointmentbot-lambda")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// The handle lives as long as the execution environment; warm
	// invocations reuse its connection.
	handle, err := app.NewHandle(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure store")
	}

	router, err := app.NewRouter(context.Background(), cfg, handle)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build router")
	}

	lambda.Start(serverless.NewAdapter(router).Invoke)
}
