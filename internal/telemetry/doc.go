// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry sets up OpenTelemetry tracing.
//
// Tracing is off by default. When enabled the only exporter writes spans to
// a local writer (stdout for the CLI); nothing is sent over the network.
//
// # Usage
//
//	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, os.Stdout, logger)
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
//
//	ctx, span := telemetry.Tracer().Start(ctx, "summary")
//	defer span.End()
package telemetry
