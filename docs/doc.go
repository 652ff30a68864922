// Package docs provides generated OpenAPI documentation.
//
// docpub API
//
//	@title			docpub API
//	@version		1.0
//	@description	Converts Docs API documents into structured content blocks and publishes them as articles and pages.
//
//	@contact.name	Tiny News Collective
//	@contact.url	https://github.com/tinynewsco/docpub
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/docpub/serve.go -o ./swagger --parseDependency --parseInternal
