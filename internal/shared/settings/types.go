package settings

// 运行时配置模块的 key，与 settings.json 顶层字段一致。
const (
	ModuleSimulation = "simulation"
	ModuleResources  = "resources"
)

// ConfigurableModule 是所有希望其配置能被在线管理的模块必须实现的接口。
// 它定义了一个标准的回调方法，当相关配置发生变更时，SettingsManager会调用此方法。
type ConfigurableModule interface {
	// OnSettingsUpdate 在配置变更时被 SettingsManager 调用。
	// moduleKey: 告知是哪个模块的配置发生了变化 (e.g., "simulation", "resources")。
	// newSettings: 是对应模块的、已经解析好的新配置结构体指针 (e.g., *SimulationSettings)。
	OnSettingsUpdate(moduleKey string, newSettings interface{}) error
}

// RuntimeSettings 是 settings.json 文件的顶层结构。
// 使用指针类型确保了当JSON文件中缺少某个模块时，对应的字段为nil，而不是一个空的结构体。
type RuntimeSettings struct {
	Simulation *SimulationSettings `json:"simulation"`
	Resources  *ResourceSettings   `json:"resources"`
}

// SimulationSettings 对应 settings.json 中的 "simulation" 模块。
type SimulationSettings struct {
	TickIntervalMs int     `json:"tick_interval_ms"`
	StepX          float64 `json:"step_x"` // added to model_1.position.x every tick
	Paused         bool    `json:"paused"`
}

// ResourceSettings 对应 settings.json 中的 "resources" 模块。
type ResourceSettings struct {
	Scale float64 `json:"scale"` // 1 serves OBJ files verbatim
}

const minTickIntervalMs = 10

func defaultSimulation() *SimulationSettings {
	return &SimulationSettings{TickIntervalMs: 1000, StepX: 0.1}
}

func defaultResources() *ResourceSettings {
	return &ResourceSettings{Scale: 1}
}

func createDefaultSettings() *RuntimeSettings {
	return &RuntimeSettings{
		Simulation: defaultSimulation(),
		Resources:  defaultResources(),
	}
}

func ensureDefaultModules(s *RuntimeSettings) {
	if s.Simulation == nil {
		s.Simulation = defaultSimulation()
	}
	if s.Resources == nil {
		s.Resources = defaultResources()
	}
}
