package inbound

import "github.com/gin-gonic/gin"

// ModelHttpPort defines HTTP handler interface for the model catalog.
type ModelHttpPort interface {
	// ListModels handles GET /models
	ListModels(c *gin.Context)

	// GetModel handles GET /models/*id
	GetModel(c *gin.Context)
}

// CredentialHttpPort defines HTTP handler interface for provider credentials.
type CredentialHttpPort interface {
	// ListCredentials handles GET /credentials
	ListCredentials(c *gin.Context)

	// SetCredential handles PUT /credentials/:provider
	SetCredential(c *gin.Context)

	// ClearCredential handles DELETE /credentials/:provider
	ClearCredential(c *gin.Context)
}

// FileHttpPort defines HTTP handler interface for stored assets.
type FileHttpPort interface {
	// ServeFile handles GET /files/*path
	ServeFile(c *gin.Context)
}
