package netsvr

import (
	"net/http"

	"github.com/zintix-labs/shufflelab/server/app"
)

// NetSvr 是「路由註冊 + 服務啟停」的完整服務抽象。
//   - 只有最外層的組裝端（server.Run / main）需要拿 NetSvr；
//     handler 與子模組一律面向 NetRouter。
//   - 依賴反轉：api 層不直接 import chi，換框架只需提供新的 NetSvr 實作。
//   - NetSvr 內含 app.Component，可直接交給 app.App 託管生命週期。
type NetSvr interface {
	NetRouter
	app.Component
}

// NetRouter 只定義路由行為，不含 Run/Shutdown。
// Group 回呼拿到的也是 NetRouter，子模組註冊路由時拿不到啟停控制權。
type NetRouter interface {
	// middleware
	Use(middleware func(http.Handler) http.Handler)

	// 註冊路由
	Get(path string, h http.HandlerFunc)
	Post(path string, h http.HandlerFunc)
	Put(path string, h http.HandlerFunc)
	Delete(path string, h http.HandlerFunc)

	// 群組路由
	Group(path string, fn func(NetRouter))
}
