package domain

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
)

// Content is the type specific metadata of a job. Each job type has exactly one
// concrete variant and carries only the fields that pipeline stage needs.
type Content interface {
	JobType() JobType
	Validate() error
	// Produces is the path this job writes, used to find jobs that depend on it.
	Produces() string
	// Consumes is the path this job reads, used to find the job it depends on.
	Consumes() string
}

type ScanContent struct {
	ProjectName string `json:"project_name"`
	// Resource id of the scanner this job needs.
	Scanner string `json:"scanner"`
	Email   string `json:"email,omitempty"`
}

func (c *ScanContent) JobType() JobType { return Scan }
func (c *ScanContent) Produces() string { return "" }
func (c *ScanContent) Consumes() string { return "" }

func (c *ScanContent) Validate() error {
	if c.ProjectName == "" {
		return NewInvalidRequestError("scan requires project_name")
	}
	if c.Scanner == "" {
		return NewInvalidRequestError("scan requires scanner")
	}
	return nil
}

type CompileContent struct {
	// Project directory being compiled.
	Path  string `json:"path"`
	Email string `json:"email,omitempty"`
}

func (c *CompileContent) JobType() JobType { return Compile }
func (c *CompileContent) Produces() string { return cleanPath(c.Path) }
func (c *CompileContent) Consumes() string { return "" }

func (c *CompileContent) Validate() error {
	if c.Path == "" {
		return NewInvalidRequestError("compile requires path")
	}
	return nil
}

type AnalysisContent struct {
	// Compilation file written by a compile job, inside the compiled project directory.
	Compilation     string `json:"compilation"`
	OutputDirectory string `json:"output_directory"`
	Email           string `json:"email,omitempty"`
}

func (c *AnalysisContent) JobType() JobType { return Analysis }
func (c *AnalysisContent) Consumes() string { return cleanPath(filepath.Dir(c.Compilation)) }

// Produces resolves a relative output directory against the compilation's directory.
func (c *AnalysisContent) Produces() string {
	if c.OutputDirectory == "" {
		return ""
	}
	if filepath.IsAbs(c.OutputDirectory) {
		return cleanPath(c.OutputDirectory)
	}
	return cleanPath(filepath.Join(filepath.Dir(c.Compilation), c.OutputDirectory))
}

func (c *AnalysisContent) Validate() error {
	if c.Compilation == "" {
		return NewInvalidRequestError("analysis requires compilation")
	}
	if c.OutputDirectory == "" {
		return NewInvalidRequestError("analysis requires output_directory")
	}
	return nil
}

type FeaturesContent struct {
	AnalysisDirectory string `json:"analysis_directory"`
	Email             string `json:"email,omitempty"`
}

func (c *FeaturesContent) JobType() JobType { return Features }
func (c *FeaturesContent) Produces() string { return "" }
func (c *FeaturesContent) Consumes() string { return cleanPath(c.AnalysisDirectory) }

func (c *FeaturesContent) Validate() error {
	if c.AnalysisDirectory == "" {
		return NewInvalidRequestError("features requires analysis_directory")
	}
	return nil
}

// Upstream is the job type whose output a job of type t consumes, if any.
func Upstream(t JobType) (JobType, bool) {
	switch t {
	case Analysis:
		return Compile, true
	case Features:
		return Analysis, true
	}
	return "", false
}

// DecodeContent unmarshals raw into the variant for t and validates it.
// Unknown fields are rejected so a payload meant for another job type is caught early.
func DecodeContent(t JobType, raw []byte) (Content, error) {
	var c Content
	switch t {
	case Scan:
		c = &ScanContent{}
	case Compile:
		c = &CompileContent{}
	case Analysis:
		c = &AnalysisContent{}
	case Features:
		c = &FeaturesContent{}
	default:
		return nil, NewInvalidRequestError("unknown job type %q", t)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, NewInvalidRequestError("missing content_model for %s", t)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return nil, NewInvalidRequestError("bad content_model for %s: %v", t, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ContentEmail is the submitter's address, "" when the content carries none.
func ContentEmail(c Content) string {
	switch v := c.(type) {
	case *ScanContent:
		return v.Email
	case *CompileContent:
		return v.Email
	case *AnalysisContent:
		return v.Email
	case *FeaturesContent:
		return v.Email
	}
	return ""
}

// DescribeContent gives a short human label for a job, used when none was supplied.
func DescribeContent(c Content) string {
	switch v := c.(type) {
	case *ScanContent:
		return v.ProjectName
	case *CompileContent:
		return filepath.Base(v.Path)
	case *AnalysisContent:
		return filepath.Base(filepath.Dir(v.Compilation))
	case *FeaturesContent:
		return filepath.Base(v.AnalysisDirectory)
	}
	return ""
}

func cleanPath(p string) string {
	if strings.TrimSpace(p) == "" {
		return ""
	}
	return filepath.Clean(p)
}
