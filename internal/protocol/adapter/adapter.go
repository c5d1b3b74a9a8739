package adapter

// Adapter 连接字节流到协议帧的适配接口，每个连接一个实例，由读循环顺序调用
//   - Sniff 首个数据块是否像本协议，仅用于诊断
//   - ProcessBytes 追加原始字节并分发完整帧（内部处理半包/粘包），返回错误时应断开连接
//   - Buffered 尚未成帧的字节数
type Adapter interface {
	Sniff(prefix []byte) bool
	ProcessBytes(p []byte) error
	Buffered() int
}
