package lsp

import "encoding/json"

// ///////////////////////////////////////////////
// Methods
// ///////////////////////////////////////////////

const (
	methodInitialize  = "initialize"
	methodInitialized = "initialized"
	methodShutdown    = "shutdown"
	methodExit        = "exit"
	methodDidOpen     = "textDocument/didOpen"
	methodDidChange   = "textDocument/didChange"
	methodDidSave     = "textDocument/didSave"
	methodLogMessage  = "window/logMessage"
)

// syncIncremental is TextDocumentSyncKind.Incremental.
const syncIncremental = 2

// messageInfo is MessageType.Info.
const messageInfo = 3

// ///////////////////////////////////////////////
// Params
// ///////////////////////////////////////////////

// Only the fields the server reads are declared. initializationOptions is
// kept raw so that config.Parse sees explicit nulls.

type initializeParams struct {
	RootURI               string            `json:"rootUri"`
	RootPath              string            `json:"rootPath"`
	WorkspaceFolders      []workspaceFolder `json:"workspaceFolders"`
	InitializationOptions json.RawMessage   `json:"initializationOptions"`
}

type workspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

type textDocumentIdentifier struct {
	URI string `json:"uri"`
}

type position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

type textRange struct {
	Start position `json:"start"`
	End   position `json:"end"`
}

type contentChange struct {
	Range *textRange `json:"range,omitempty"`
}

type didOpenParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
}

type didChangeParams struct {
	TextDocument   textDocumentIdentifier `json:"textDocument"`
	ContentChanges []contentChange        `json:"contentChanges"`
}

type didSaveParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
}

// ///////////////////////////////////////////////
// Results
// ///////////////////////////////////////////////

type saveOptions struct {
	IncludeText bool `json:"includeText"`
}

type textDocumentSyncOptions struct {
	OpenClose bool        `json:"openClose"`
	Change    int         `json:"change"`
	Save      saveOptions `json:"save"`
}

type serverCapabilities struct {
	TextDocumentSync textDocumentSyncOptions `json:"textDocumentSync"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type initializeResult struct {
	Capabilities serverCapabilities `json:"capabilities"`
	ServerInfo   serverInfo         `json:"serverInfo"`
}

type logMessageParams struct {
	Type    int    `json:"type"`
	Message string `json:"message"`
}
