package db_test

import (
	"github.com/raphaelgruber/honeytrap/internal/db"
	"github.com/raphaelgruber/honeytrap/internal/service"
)

var _ service.Store = (*db.Client)(nil)
