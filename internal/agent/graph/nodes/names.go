package nodes

// Graph node keys.
const (
	NodeInputConverter    = "InputConverter"
	NodeAnalyzerChatModel = "AnalyzerChatModel"
	NodeAnalysisParser    = "AnalysisParser"
	NodeClarify           = "Clarify"

	NodeListTables      = "ListTables"
	NodeSchemaChatModel = "SchemaChatModel"
	NodeGetSchema       = "GetSchema"
	NodeGenerateQuery   = "GenerateQuery"
	NodeCheckQuery      = "CheckQuery"
	NodeRunQuery        = "RunQuery"

	NodeRefuse   = "Refuse"
	NodeFinalize = "Finalize"
	NodeReport   = "Report"
)
