// Package shim implements CodeShimGenerator (C2): it produces the
// bootstrap dispatcher source, the two HTML templates, and the manifest
// for a fresh (or repaired) GAS project. Per the design note on shim
// generation, the source strings live in one place and are loaded from
// build-time embedded resources rather than built by runtime string
// concatenation.
package shim

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"text/template"

	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/gasmodel"
)

//go:embed templates/dispatcher.js.tmpl templates/error.html.tmpl templates/success.html.tmpl templates/manifest.json.tmpl
var templatesFS embed.FS

var (
	dispatcherTmpl = template.Must(template.ParseFS(templatesFS, "templates/dispatcher.js.tmpl"))
	errorTmpl      = template.Must(template.ParseFS(templatesFS, "templates/error.html.tmpl"))
	successTmpl    = template.Must(template.ParseFS(templatesFS, "templates/success.html.tmpl"))
	manifestTmpl   = template.Must(template.ParseFS(templatesFS, "templates/manifest.json.tmpl"))
)

// Params parameterizes shim generation: the project's time zone and
// display title threaded through the HTML templates and the manifest, plus
// the dispatcher's own file name threaded through its header comment.
type Params struct {
	TimeZone     string
	ProjectTitle string
	ShimFileName string
}

// Artifact is one generated file plus its SHA-256 fingerprint, used by
// InfrastructureManager to decide whether a remote copy is stale.
type Artifact struct {
	Name   string
	Type   constants.FileType
	Source string
	SHA256 string
}

func render(tmpl *template.Template, params Params) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("rendering template %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func fingerprint(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Dispatcher renders the exec dispatcher SERVER_JS artifact.
func Dispatcher(params Params) (Artifact, error) {
	params.ShimFileName = constants.ShimFileName
	source, err := render(dispatcherTmpl, params)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Name: constants.ShimFileName, Type: constants.FileTypeServerJS, Source: source, SHA256: fingerprint(source)}, nil
}

// ErrorTemplate renders the HTML error template artifact.
func ErrorTemplate(params Params) (Artifact, error) {
	source, err := render(errorTmpl, params)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Name: constants.ErrorTemplateName, Type: constants.FileTypeHTML, Source: source, SHA256: fingerprint(source)}, nil
}

// SuccessTemplate renders the HTML success template artifact.
func SuccessTemplate(params Params) (Artifact, error) {
	source, err := render(successTmpl, params)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Name: constants.SuccessTemplateName, Type: constants.FileTypeHTML, Source: source, SHA256: fingerprint(source)}, nil
}

// Manifest renders the appsscript.json manifest artifact.
func Manifest(params Params) (Artifact, error) {
	source, err := render(manifestTmpl, params)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Name: constants.ManifestName, Type: constants.FileTypeJSON, Source: source, SHA256: fingerprint(source)}, nil
}

// All renders every shim artifact (dispatcher, both HTML templates, and
// the manifest) in one call, for InfrastructureManager's fresh-install
// path.
func All(params Params) ([]Artifact, error) {
	builders := []func(Params) (Artifact, error){Dispatcher, ErrorTemplate, SuccessTemplate, Manifest}
	artifacts := make([]Artifact, 0, len(builders))
	for _, build := range builders {
		a, err := build(params)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

// ToRemoteFile converts a generated artifact to the RemoteFile shape
// RemoteAPIGateway's content operations expect.
func (a Artifact) ToRemoteFile() gasmodel.RemoteFile {
	return gasmodel.RemoteFile{Name: a.Name, Type: a.Type, Source: a.Source}
}
