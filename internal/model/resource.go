package model

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"
)

// ErrUnknownResource is returned when a resource kind is not supported.
var ErrUnknownResource = errors.New("unknown resource")

// Resource is the kind of platform object whose pods are tailed.
type Resource string

const (
	ResourceRouters Resource = "routers"
	ResourceJobs    Resource = "jobs"
)

var resourceComponents = map[Resource][]string{
	ResourceRouters: {"router", "enricher", "ensembler"},
	ResourceJobs:    {"image_builder", "driver", "executor"},
}

var resourcePollIntervals = map[Resource]time.Duration{
	ResourceRouters: 5 * time.Second,
	ResourceJobs:    7 * time.Second,
}

// ParseResource validates a resource name.
func ParseResource(s string) (Resource, error) {
	r := Resource(s)
	if _, ok := resourceComponents[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownResource, s)
	}
	return r, nil
}

// Components returns the pod components that emit logs for the resource.
func (r Resource) Components() []string {
	return slices.Clone(resourceComponents[r])
}

// HasComponent reports whether c is a component of the resource.
func (r Resource) HasComponent(c string) bool {
	return slices.Contains(resourceComponents[r], c)
}

// DefaultComponent is the component selected when none is configured.
func (r Resource) DefaultComponent() string {
	cs := resourceComponents[r]
	if len(cs) == 0 {
		return ""
	}
	return cs[0]
}

// DefaultPollInterval is the poll cadence used for the resource unless overridden.
func (r Resource) DefaultPollInterval() time.Duration {
	if d, ok := resourcePollIntervals[r]; ok {
		return d
	}
	return 5 * time.Second
}

// LogsPath identifies the logs endpoint of one resource instance.
type LogsPath struct {
	ProjectID  string
	Resource   Resource
	ResourceID string
}

// String renders the path as /projects/{id}/{resource}/{id}/logs.
func (p LogsPath) String() string {
	return "/projects/" + url.PathEscape(p.ProjectID) +
		"/" + url.PathEscape(string(p.Resource)) +
		"/" + url.PathEscape(p.ResourceID) + "/logs"
}
