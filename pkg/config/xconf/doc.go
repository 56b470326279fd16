// Package xconf 提供配置加载和热重载，基于 koanf 实现。
//
// xconf 定位为最小化配置加载器：负责文件/字节数据的加载、反序列化和
// 变更监视。字段校验由使用方完成（例如 xpool.Config.Validate）。
//
// # 支持的格式
//
//   - YAML：.yaml, .yml
//   - JSON：.json
//
// # Unmarshal
//
// 解码使用 mapstructure 钩子：字符串可转换为 time.Duration（"30s"），
// 实现 encoding.TextUnmarshaler 的类型（如 xpool.Policy、xlog.Level）
// 可直接从字符串解码。
//
// # 并发安全
//
// Reload 在解析成功后原子替换底层 koanf 实例；Client 返回的指针在
// Reload 后仍可使用，但指向旧快照。
//
// # 配置监视
//
// [Watch] 基于 fsnotify 监视配置文件所在目录（兼容编辑器的原子写入），
// 内置防抖。Watcher 的 Run(ctx) 可以直接作为 xrun 服务运行。
package xconf
