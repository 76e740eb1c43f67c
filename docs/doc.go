// Package docs provides generated OpenAPI documentation.
//
// Promptshelf API
//
//	@title			Promptshelf API
//	@version		1.0
//	@description	Prompt library API: per-user prompts, tags, platform launch links and version history with word-level highlighting.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/promptshelf
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
//
//	@securityDefinitions.apikey	UserID
//	@in							header
//	@name						X-User-ID
package docs

//go:generate swag init -g ../cmd/promptshelf/serve.go -o . --parseDependency --parseInternal
