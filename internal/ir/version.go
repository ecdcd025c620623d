package ir

// EngineVersion is the seedgraph release, reported by `seedgraph --version`.
const EngineVersion = "0.1.0"
