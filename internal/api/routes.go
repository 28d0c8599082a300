package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/about"

	IssueTokenRoute = "/token"
	ProxyRoute      = "/proxy"
	InfoRoute       = "/info"

	AdminParent      = "/v1/admin/"
	MetricsRoute     = AdminParent + "metrics"
	ListAuditsRoute  = AdminParent + "audits"
	ListTasksRoute   = AdminParent + "tasks"
	TriggerTaskRoute = ListTasksRoute + "/{name}/trigger"
	LogsForTaskRoute = ListTasksRoute + "/{name}/logs"
)
