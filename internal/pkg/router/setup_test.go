package router

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

var (
	_ Router = (*HttpRouter)(nil)
	_ Router = (*ApiRouter)(nil)
)

type recordingRouter struct {
	installed *[]string
	name      string
}

func (r recordingRouter) InstallRouter(app *fiber.App) {
	*r.installed = append(*r.installed, r.name)
}

func TestSetupInstallsRoutersInOrder(t *testing.T) {
	app := fiber.New()

	var got []string
	setup(app,
		recordingRouter{installed: &got, name: "http"},
		recordingRouter{installed: &got, name: "api"},
	)

	assert.Equal(t, []string{"http", "api"}, got)
}
