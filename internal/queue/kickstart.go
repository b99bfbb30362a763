package queue

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/kean0048/lorax-for-legion/internal/blueprint"
)

// kickstartTemplate is the minimal skeleton the installer needs: fixed
// language, bootloader and network settings plus a package list built from
// the frozen blueprint's NEVRAs. The same skeleton is used for every compose
// type; no templates are read from the share directory.
var kickstartTemplate = template.Must(template.New("kickstart").Parse(`# generated by composer for compose type {{.ComposeType}}
lang en_US.UTF-8
keyboard us
timezone UTC
bootloader --location=mbr
network --bootproto=dhcp
rootpw --lock
services --enabled=sshd

%packages
{{- range .Packages}}
{{.}}
{{- end}}
%end
`))

type kickstartData struct {
	ComposeType string
	Packages    []string
}

// DefaultKickstartRenderer renders the kickstart template above. It
// satisfies KickstartRenderer and is the renderer cmd/composer wires in.
type DefaultKickstartRenderer struct{}

func (DefaultKickstartRenderer) Render(bp blueprint.Blueprint, composeType string) (string, error) {
	// a frozen version is already the full NEVRA; an unresolved one is a
	// version glob that still needs the name in front of it
	spec := func(p blueprint.Package) string {
		if strings.HasPrefix(p.Version, p.Name+"-") {
			return p.Version
		}
		return p.Name + "-" + p.Version
	}

	data := kickstartData{ComposeType: composeType}
	for _, m := range bp.Modules {
		data.Packages = append(data.Packages, spec(m))
	}
	for _, p := range bp.Packages {
		data.Packages = append(data.Packages, spec(p))
	}

	var buf bytes.Buffer
	if err := kickstartTemplate.Execute(&buf, data); err != nil {
		return "", &QueueError{Message: err.Error()}
	}
	return buf.String(), nil
}
