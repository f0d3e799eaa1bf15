package model

// DeclKind distinguishes the two kinds of declaration the classifier records.
type DeclKind string

const (
	DeclFunction DeclKind = "function"
	DeclMacro    DeclKind = "macro"
)

// Declaration is one function or macro seen while walking a translation
// unit. A function with a body inside the project root is user-defined;
// anything else (a bare declaration, or anything under an include
// directory) is external.
//
//nolint:tagliatelle
type Declaration struct {
	Name         string   `json:"name"`
	Kind         DeclKind `json:"kind"`
	File         string   `json:"file"`
	Line         int      `json:"line"`
	IsDefinition bool     `json:"is_definition"`
	IsStatic     bool     `json:"is_static"`
	Params       []string `json:"params,omitempty"`

	// Body is the definition's source text. Populated only for user-defined
	// functions; external declarations never carry a body.
	Body string `json:"-"`
}

// Identity returns the key used to deduplicate and look up a declaration.
// Static functions are scoped to their file; everything else is scoped by
// name alone, matching C's linkage rules closely enough for this analysis.
func (d Declaration) Identity() string {
	if d.IsStatic {
		return d.File + "::" + d.Name
	}
	return d.Name
}

// Phase12Artifact is the JSON document written by the classifier (P1-2) and
// consumed by every later phase.
type Phase12Artifact struct {
	UserDefinedFunctions []Declaration `json:"user_defined_functions"`
	ExternalDeclarations []Declaration `json:"external_declarations"`
	Macros               []Declaration `json:"macros"`
}

// FindUserDefined looks up a user-defined function by name alone. A
// non-static definition wins; otherwise the first static definition with
// that name is returned, whichever file it is in.
func (p *Phase12Artifact) FindUserDefined(name string) (Declaration, bool) {
	var byNameOnly *Declaration
	for i := range p.UserDefinedFunctions {
		d := p.UserDefinedFunctions[i]
		if d.Name != name {
			continue
		}
		if !d.IsStatic {
			return d, true
		}
		if byNameOnly == nil {
			byNameOnly = &p.UserDefinedFunctions[i]
		}
	}
	if byNameOnly != nil {
		return *byNameOnly, true
	}
	return Declaration{}, false
}

// IsExternalName reports whether name was declared (not defined) externally,
// e.g. a TEE Internal Core API or devkit function.
func (p *Phase12Artifact) IsExternalName(name string) bool {
	for _, d := range p.ExternalDeclarations {
		if d.Name == name {
			return true
		}
	}
	return false
}
