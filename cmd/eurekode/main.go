package main

import (
	"github.com/Tao119/eurekode-sub004/internal/allocation"
	"github.com/Tao119/eurekode-sub004/internal/checkout"
	"github.com/Tao119/eurekode-sub004/internal/clock"
	"github.com/Tao119/eurekode-sub004/internal/config"
	"github.com/Tao119/eurekode-sub004/internal/credit"
	"github.com/Tao119/eurekode-sub004/internal/generation"
	"github.com/Tao119/eurekode-sub004/internal/migration"
	"github.com/Tao119/eurekode-sub004/internal/observability"
	"github.com/Tao119/eurekode-sub004/internal/plan"
	"github.com/Tao119/eurekode-sub004/internal/scheduler"
	"github.com/Tao119/eurekode-sub004/internal/server"
	"github.com/Tao119/eurekode-sub004/internal/subscription"
	"github.com/Tao119/eurekode-sub004/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Credit engine domains
		plan.Module,
		subscription.Module,
		credit.Module,
		allocation.Module,
		generation.Module,
		checkout.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
