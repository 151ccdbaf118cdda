package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kbukum/ioc/aop"
	"github.com/kbukum/ioc/component"
	"github.com/kbukum/ioc/di"
)

// InstanceInfo describes a container definition in the startup summary.
type InstanceInfo struct {
	Name         string
	Status       string // "created", "lazy" or "pending"
	Proxied      bool
	Dependencies []string
}

// Summary tracks and displays the application bootstrap process.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
}

// NewSummary creates a new bootstrap summary tracker.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// Instances collects the state of every definition in container.
// proxies may be nil.
func Instances(container *di.Container, proxies *aop.AutoProxyCreator) []InstanceInfo {
	if container == nil {
		return nil
	}
	reg := container.Registry()
	var out []InstanceInfo
	for _, name := range container.DefinitionNames() {
		info := InstanceInfo{Name: name, Status: "pending"}
		def, _ := container.Definition(name)
		switch {
		case reg.Contains(name):
			info.Status = "created"
			info.Dependencies = reg.Dependencies(name)
		case def.Lazy:
			info.Status = "lazy"
		}
		if proxies != nil {
			info.Proxied = proxies.IsWrapped(name)
		}
		out = append(out, info)
	}
	return out
}

// Render writes the bootstrap summary including live health from the
// component registry.
func (s *Summary) Render(w io.Writer, components *component.Registry, container *di.Container, proxies *aop.AutoProxyCreator) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "🚀 %s v%s started in %.2fs\n\n", s.serviceName, s.version, s.startupDuration.Seconds())

	var descs []component.Description
	if components != nil {
		descs = components.Describe()
	}
	if len(descs) > 0 {
		fmt.Fprintf(w, "📊 Infrastructure\n")
		for i, d := range descs {
			fmt.Fprintf(w, "   %s %s [%s]: %s\n", treePrefix(i, len(descs)), d.Name, d.Type, d.Details)
		}
		fmt.Fprintf(w, "\n")
	}

	instances := Instances(container, proxies)
	if len(instances) > 0 {
		fmt.Fprintf(w, "📦 Instances (%d)\n", len(instances))
		created := 0
		for i, inst := range instances {
			last := i == len(instances)-1
			proxied := ""
			if inst.Proxied {
				proxied = " 🛡️ proxied"
			}
			fmt.Fprintf(w, "   %s %s %s (%s)%s\n", treePrefix(i, len(instances)), statusIcon(inst.Status), inst.Name, inst.Status, proxied)
			for j, dep := range inst.Dependencies {
				fmt.Fprintf(w, "   %s 🔗 %s\n", depPrefix(last, j == len(inst.Dependencies)-1), dep)
			}
			if inst.Status == "created" {
				created++
			}
		}
		fmt.Fprintf(w, "\n")
		fmt.Fprintf(w, "✅ %d/%d instances created\n", created, len(instances))
	}

	if components != nil {
		healthResults := components.HealthAll(context.Background())
		if len(healthResults) > 0 {
			fmt.Fprintf(w, "\n🏥 Health Check\n")
			for i, h := range healthResults {
				msg := ""
				if h.Message != "" {
					msg = fmt.Sprintf(" (%s)", h.Message)
				}
				fmt.Fprintf(w, "   %s %s %s: %s%s\n", treePrefix(i, len(healthResults)), healthStatusIcon(h.Status), h.Name, strings.ToLower(string(h.Status)), msg)
			}
		}
	}

	fmt.Fprintf(w, "\n")
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func depPrefix(lastParent, lastChild bool) string {
	switch {
	case lastParent && lastChild:
		return "    └──"
	case lastParent:
		return "    ├──"
	case lastChild:
		return "│   └──"
	default:
		return "│   ├──"
	}
}

func statusIcon(status string) string {
	switch status {
	case "created":
		return "✅"
	case "lazy":
		return "⚡"
	default:
		return "⏸️"
	}
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
