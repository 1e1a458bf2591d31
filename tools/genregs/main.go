// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command genregs emits pkg/vsregs/table_gen.go from the fieldTable in
// this package. The original enumerates every VMCS/VMCB field by hand as
// a C++ constexpr per-field (kernel/src/x64/intel/vmcs_t.hpp); generating
// the Go equivalent from one data table keeps the 175 entries in sync
// across the Reg enum, the Intel encoding table and the AMD offset table
// instead of three hand-maintained lists drifting apart.
//
// Run from the module root:
//
//	go run ./tools/genregs > pkg/vsregs/table_gen.go
package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"golang.org/x/tools/imports"
)

const tmplSrc = `// Code generated by tools/genregs. DO NOT EDIT.

package vsregs

// Reg names one field of a vs_t's architectural state, spanning the GPR
// shadow, control registers, segment descriptors, descriptor tables,
// mirrored MSRs, VMX/SVM control fields and exit information (spec.md
// §4.3).
type Reg uint32

const (
{{- range $i, $f := .Fields }}
	Reg{{ $f.GoName }} Reg = {{ $i }} // {{ $f.category }}
{{- end }}
	regCount = {{ len .Fields }}
)

// encoding holds the backend-specific location of a field: a byte offset
// within a VS's simulated backing page on Intel, and on AMD. A zero
// value means the field does not exist on that backend.
type encoding struct {
	intel uint64
	amd   uint64
	width int
}

var encodingTable = [regCount]encoding{
{{- range $i, $f := .Fields }}
	Reg{{ $f.GoName }}: {intel: {{ printf "0x%X" $f.intel }}, amd: {{ printf "0x%X" $f.amd }}, width: {{ $f.width }}},
{{- end }}
}

var nameTable = [regCount]string{
{{- range $i, $f := .Fields }}
	Reg{{ $f.GoName }}: "{{ $f.name }}",
{{- end }}
}
`

func goName(field string) string {
	parts := strings.Split(field, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

type templateField struct {
	fieldSpec
	GoName string
}

func main() {
	fields := make([]templateField, len(fieldTable))
	for i, f := range fieldTable {
		fields[i] = templateField{fieldSpec: f, GoName: goName(f.name)}
	}

	tmpl := template.Must(template.New("table").Parse(tmplSrc))
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Fields []templateField }{fields}); err != nil {
		fmt.Fprintf(os.Stderr, "genregs: render template: %v\n", err)
		os.Exit(1)
	}

	formatted, err := imports.Process("table_gen.go", buf.Bytes(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "genregs: imports.Process: %v\n", err)
		os.Exit(1)
	}
	os.Stdout.Write(formatted)
}
