// Package main Henji Server API
//
//	@title						Henji Server API
//	@version					1.0
//	@description				Queue and track image, video and audio generation across fal, PPIO, KIE and ModelScope.
//
//	@license.name				MIT
//
//	@host						localhost:8080
//	@BasePath					/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}". Required only when auth.jwt_secret is set.
//
//	@tag.name					Tasks
//	@tag.description			Generation task queue and history
//
//	@tag.name					Presets
//	@tag.description			Saved prompts and reference images
//
//	@tag.name					Models
//	@tag.description			Model catalog
//
//	@tag.name					Credentials
//	@tag.description			Provider API keys
//
//	@tag.name					Files
//	@tag.description			Stored uploads and results
package main
