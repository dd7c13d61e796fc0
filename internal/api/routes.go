package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/icanhazkeylease"

	ExchangeRoute    = "/v1/exchange"
	LeaseRenewRoute  = "/v1/lease/renew"
	LeaseRevokeRoute = "/v1/lease/revoke"

	AdminParent     = "/v1/admin/"
	ListAuditsRoute = AdminParent + "audits"
	ListLeasesRoute = AdminParent + "leases"
	ExplainRoute    = AdminParent + "explain"

	TaskParent       = AdminParent + "tasks"
	ListTasksRoute   = TaskParent
	TriggerTaskRoute = TaskParent + "/{name}/trigger"
	LogsForTaskRoute = TaskParent + "/{name}/logs"
)
