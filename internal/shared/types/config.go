package types

// ServerConf 服务端监听与资源目录配置
type ServerConf struct {
	Host         string `ini:"host"`
	Port         int    `ini:"port"`
	ResourceDir  string `ini:"resource_dir"`  // OBJ 等资源文件目录
	SettingsFile string `ini:"settings_file"` // 运行时配置 settings.json，空表示仅内存
	WebUser      string `ini:"web_user"`
	WebPassword  string `ini:"web_password"`
}

// ClientConf 测试客户端 (tester) 使用的配置
type ClientConf struct {
	ServerHost       string `ini:"server_host"`
	ServerPort       int    `ini:"server_port"`
	InteractionPath  string `ini:"interaction_path"` // WebSocket 路径
	ResourcePath     string `ini:"resource_path"`    // HTTP 资源前缀
	DefaultResource  string `ini:"default_resource"`
	HTTPTimeout      int    `ini:"http_timeout"`      // 秒
	HandshakeTimeout int    `ini:"handshake_timeout"` // 秒
	Proxy            string `ini:"proxy"`             // 可选 SOCKS5 代理, host:port
	AutoReply        bool   `ini:"auto_reply"`
}

// MeshConf 控制 OBJ 解析与场景中对象的摆放
type MeshConf struct {
	SwapYZ        bool    `ini:"swap_yz"`
	FaceMode      string  `ini:"face_mode"` // "first" 或 "fan"
	StrictIndices bool    `ini:"strict_indices"`
	Scale         float64 `ini:"scale"`
	Camera        string  `ini:"camera"` // 相机位置 "x,y,z"，空为默认
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// Config 是统一配置结构体
type Config struct {
	ServerConf `ini:"server"`
	ClientConf `ini:"client"`
	MeshConf   `ini:"mesh"`
	LogConf    `ini:"log"`
}

// DefaultConfig 返回在 ini 文件缺少字段时使用的默认值。
func DefaultConfig() *Config {
	return &Config{
		ServerConf: ServerConf{
			Host:         "0.0.0.0",
			Port:         8000,
			ResourceDir:  "resources",
			SettingsFile: "settings.json",
		},
		ClientConf: ClientConf{
			ServerHost:       "localhost",
			ServerPort:       8000,
			InteractionPath:  "/cadverse/interaction",
			ResourcePath:     "/cadverse/resources",
			DefaultResource:  "base.obj",
			HTTPTimeout:      5,
			HandshakeTimeout: 15,
		},
		MeshConf: MeshConf{
			SwapYZ:   true,
			FaceMode: "first",
			Scale:    0.01,
		},
		LogConf: LogConf{Level: "info"},
	}
}
