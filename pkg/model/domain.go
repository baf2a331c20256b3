package model

import "fmt"

// Domain identifies one of the independent task collections.
type Domain int

const (
	DomainCourses Domain = iota
	DomainWork
	DomainResearch
	DomainSocial
	DomainInternship
)

// Domains lists every domain in display order.
var Domains = []Domain{DomainCourses, DomainWork, DomainResearch, DomainSocial, DomainInternship}

// Categories used by the grouped view and the calendar color table.
const (
	CategoryCourses  = "courses"
	CategoryWork     = "work"
	CategoryCareer   = "career"
	CategoryResearch = "research"
	CategoryFun      = "fun"
)

func (d Domain) String() string {
	switch d {
	case DomainCourses:
		return "courses"
	case DomainWork:
		return "work"
	case DomainResearch:
		return "research"
	case DomainSocial:
		return "social"
	case DomainInternship:
		return "internship"
	}
	return fmt.Sprintf("domain(%d)", int(d))
}

// DefaultCategory is the category a task in d gets when none is given.
func (d Domain) DefaultCategory() string {
	switch d {
	case DomainCourses:
		return CategoryCourses
	case DomainWork:
		return CategoryWork
	case DomainResearch:
		return CategoryResearch
	case DomainSocial:
		return CategoryFun
	case DomainInternship:
		return CategoryCareer
	}
	return ""
}

// Container returns the container kind owning tasks of d, if any.
func (d Domain) Container() (ContainerKind, bool) {
	switch d {
	case DomainCourses:
		return KindCourse, true
	case DomainWork:
		return KindWorkRole, true
	}
	return 0, false
}

// ParseDomain accepts the domain names used on the CLI and the HTTP API.
func ParseDomain(s string) (Domain, error) {
	switch s {
	case "courses", "course":
		return DomainCourses, nil
	case "work":
		return DomainWork, nil
	case "research":
		return DomainResearch, nil
	case "social":
		return DomainSocial, nil
	case "internship", "job-applications":
		return DomainInternship, nil
	}
	return 0, &ValidationError{Field: "domain", Reason: fmt.Sprintf("unknown domain %q", s)}
}

// ContainerKind is either a Course or a WorkRole.
type ContainerKind int

const (
	KindCourse ContainerKind = iota
	KindWorkRole
)

func (k ContainerKind) String() string {
	switch k {
	case KindCourse:
		return "course"
	case KindWorkRole:
		return "work"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Domain returns the task domain owned by containers of kind k.
func (k ContainerKind) Domain() Domain {
	if k == KindWorkRole {
		return DomainWork
	}
	return DomainCourses
}

// ParseContainerKind accepts "course(s)" and "work".
func ParseContainerKind(s string) (ContainerKind, error) {
	switch s {
	case "course", "courses":
		return KindCourse, nil
	case "work", "workRoles", "work-roles":
		return KindWorkRole, nil
	}
	return 0, &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown container kind %q", s)}
}
