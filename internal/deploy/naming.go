package deploy

import "fmt"

const containerNameMaxLen = 255

// ContainerName derives the deterministic container name for a service.
// Format: skiff-{project}-{service}. Deterministic naming is what makes
// restarts and repeated ups converge on the same container.
func ContainerName(project, service string) string {
	project, service = truncateNameParts(project, service)
	return fmt.Sprintf("skiff-%s-%s", project, service)
}

func truncateNameParts(project, service string) (string, string) {
	const fixedLen = len("skiff--")
	maxPartsLen := containerNameMaxLen - fixedLen
	if len(project)+len(service) <= maxPartsLen {
		return project, service
	}

	over := len(project) + len(service) - maxPartsLen
	if over < len(project) {
		return project[:len(project)-over], service
	}

	over -= len(project)
	project = ""
	if over < len(service) {
		return project, service[:len(service)-over]
	}
	return project, ""
}
