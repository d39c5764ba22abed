package exports

import (
	apphttp "sentra_backend/internal/http"
	"sentra_backend/platform/config"
	"sentra_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the exports bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	apiKey  string
	log     *logger.Logger
}

// NewModule creates and initializes the exports module.
func NewModule(pool *pgxpool.Pool, cfg config.ExportConfig, log *logger.Logger) *Module {
	return &Module{
		handler: NewHandler(NewRepository(pool)),
		apiKey:  cfg.GetExportAPIKey(),
		log:     log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "exports"
}

// RegisterRoutes mounts export routes on the provided router context. The
// routes are left out when no export API key is configured.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	if m.apiKey == "" {
		m.log.Warn("EXPORT_API_KEY not set; story exports disabled")
		return
	}

	group := ctx.V1.Group("/exports")
	group.Use(APIKeyAuthMiddleware(m.apiKey))
	group.GET("/stories.csv", m.handler.ExportStoriesCSV)
	group.GET("/stories.xlsx", m.handler.ExportStoriesXLSX)
	group.GET("/stage-changes.csv", m.handler.ExportStageChangesCSV)
}

var _ apphttp.Module = (*Module)(nil)
