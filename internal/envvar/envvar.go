package envvar

const (
	// JessEnv is the environment variable used to determine the environment
	JessEnv = "JESS_ENV"

	// JessCacheDir is the environment variable used to override the model
	// artifact cache directory
	JessCacheDir = "JESS_CACHE_DIR"

	// JessGitHubToken is the environment variable carrying the token used to
	// download model artifacts from a private repository
	JessGitHubToken = "JESS_GITHUB_TOKEN"

	// JessServerHTTPPort is the environment variable used to determine the HTTP port
	JessServerHTTPPort = "JESS_SERVER_HTTP_PORT"
)
