package llm

// Provider families with a built-in adapter.
const (
	FamilyGroq      = "groq"
	FamilyGoogle    = "google"
	FamilyAnthropic = "anthropic"
	FamilyXAI       = "xai"
	FamilyOpenAI    = "openai"
	FamilyOllama    = "ollama"
)

// defaultCatalog is in declaration order; equal priorities keep this order
// after sorting, so interleaving across families here is significant.
var defaultCatalog = []ModelDescriptor{
	{ID: "openai/gpt-oss-120b", Family: FamilyGroq, Label: "GPT OSS 120B", Priority: 1},
	{ID: "qwen/qwen3-32b", Family: FamilyGroq, Label: "Qwen 3 32B", Priority: 1},
	{ID: "llama-3.3-70b-versatile", Family: FamilyGroq, Label: "Llama 3.3 70B Versatile", Priority: 2},
	{ID: "openai/gpt-oss-20b", Family: FamilyGroq, Label: "GPT OSS 20B", Priority: 2},
	{ID: "gemini-2.5-flash", Family: FamilyGoogle, Label: "Gemini 2.5 Flash", Priority: 1},
	{ID: "gemini-2.5-pro", Family: FamilyGoogle, Label: "Gemini 2.5 Pro", Priority: 2},
	{ID: "meta-llama/llama-4-maverick-17b-128e-instruct", Family: FamilyGroq, Label: "Llama 4 Maverick 17B", Priority: 3},
	{ID: "moonshotai/kimi-k2-instruct-0905", Family: FamilyGroq, Label: "Kimi K2 Instruct 0905", Priority: 3},
	{ID: "meta-llama/llama-4-scout-17b-16e-instruct", Family: FamilyGroq, Label: "Llama 4 Scout 17B", Priority: 3},
	{ID: "gemini-3-flash-preview", Family: FamilyGoogle, Label: "Gemini 3 Flash", Priority: 3},
	{ID: "moonshotai/kimi-k2-instruct", Family: FamilyGroq, Label: "Kimi K2 Instruct", Priority: 4},
	{ID: "canopylabs/orpheus-v1-english", Family: FamilyGroq, Label: "Orpheus V1 English", Priority: 4},
	{ID: "gemini-3.1-pro-preview", Family: FamilyGoogle, Label: "Gemini 3 Pro", Priority: 4},
	{ID: "llama-3.1-8b-instant", Family: FamilyGroq, Label: "Llama 3.1 8B Instant", Priority: 5},
	{ID: "allam-2-7b", Family: FamilyGroq, Label: "Allam 2 7B", Priority: 6},
	{ID: "canopylabs/orpheus-arabic-saudi", Family: FamilyGroq, Label: "Orpheus Arabic Saudi", Priority: 7},
	{ID: "whisper-large-v3-turbo", Family: FamilyGroq, Label: "Whisper Large V3 Turbo", Priority: 8},
	{ID: "whisper-large-v3", Family: FamilyGroq, Label: "Whisper Large V3", Priority: 8},
	{ID: "meta-llama/llama-prompt-guard-2-22m", Family: FamilyGroq, Label: "Llama Prompt Guard 2 22M", Priority: 9},
	{ID: "meta-llama/llama-prompt-guard-2-86m", Family: FamilyGroq, Label: "Llama Prompt Guard 2 86M", Priority: 9},
	{ID: "openai/gpt-oss-safeguard-20b", Family: FamilyGroq, Label: "GPT OSS Safeguard 20B", Priority: 9},
	{ID: "meta-llama/llama-guard-4-12b", Family: FamilyGroq, Label: "Llama Guard 4 12B", Priority: 9},
	// Last-resort families; only routable when their key is present.
	{ID: "claude-sonnet-4-5", Family: FamilyAnthropic, Label: "Claude Sonnet 4.5", Priority: 10},
	{ID: "grok-4-fast", Family: FamilyXAI, Label: "Grok 4 Fast", Priority: 10},
}

// DefaultCatalog returns a copy of the built-in model catalog.
func DefaultCatalog() []ModelDescriptor {
	out := make([]ModelDescriptor, len(defaultCatalog))
	copy(out, defaultCatalog)
	return out
}
