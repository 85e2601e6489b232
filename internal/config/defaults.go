package config

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8000,
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Path: "stemchat.db",
		},
		LLM: LLMConfig{
			APIBase:        "http://localhost:8001/v1",
			Model:          "Meta-Llama-3.1-8B-Instruct",
			EmbeddingModel: "all-MiniLM-L6-v2",
			TimeoutSeconds: 120,
		},
		Knowledge: KnowledgeConfig{
			ChunkSize: 512,
			Overlap:   50,
			TopK:      5,
		},
		Auth: AuthConfig{
			JWTSecret:     "change_me",
			ExpireMinutes: 43200,
		},
	}
}
