// Package i18n provides the translated message catalog for user-facing
// strings. The language is picked once at startup from the standard locale
// environment variables; everything else in the program asks for messages
// through T.
package i18n

import (
	"os"
	"strings"
)

// Language identifies a supported catalog.
type Language int

const (
	// LangEN is the default English catalog.
	LangEN Language = iota
	// LangZH is the simplified Chinese catalog.
	LangZH
)

// MessageID names a translatable string.
type MessageID int

const (
	MsgHelpTitle MessageID = iota
	MsgHelpVersion
	MsgHelpKeybindings
	MsgHelpKeyDetach
	MsgHelpKeySplit
	MsgHelpKeyNext
	MsgHelpKeyScrollUp
	MsgHelpKeyScrollDown
	MsgOptList
	MsgOptAttach
	MsgOptKill
	MsgOptNew
	MsgErrCommand
	MsgErrProtocolVersion
	MsgSessionFormat
	MsgNoSessions
	MsgSessionKilled
	MsgSessionNotFound
	MsgAttachFailed
	MsgNestedWarning
	MsgStatusHistory
	MsgWindowNew
	MsgWindowAttached

	msgCount
)

var messagesEN = [msgCount]string{
	MsgHelpTitle:          "muxkit - a minimal terminal multiplexer",
	MsgHelpVersion:        "Version: %s By LatosProject",
	MsgHelpKeybindings:    "Key bindings:",
	MsgHelpKeyDetach:      "  Ctrl+B d   Detach from current session",
	MsgHelpKeySplit:       "  Ctrl+B %   Split pane vertically",
	MsgHelpKeyNext:        "  Ctrl+B o   Switch to next pane",
	MsgHelpKeyScrollUp:    "  Ctrl+B [   Scroll up (view history)",
	MsgHelpKeyScrollDown:  "  Ctrl+B ]   Scroll down",
	MsgOptList:            "list all sessions",
	MsgOptAttach:          "attach to detached session by id",
	MsgOptKill:            "kill session by id",
	MsgOptNew:             "create a detached session without attaching",
	MsgErrCommand:         "unknown command\n",
	MsgErrProtocolVersion: "protocol version mismatch\n",
	MsgSessionFormat:      "%d: %s (pid %d)\n",
	MsgNoSessions:         "(no sessions)\n",
	MsgSessionKilled:      "killed session %d\n",
	MsgSessionNotFound:    "session %d not found\n",
	MsgAttachFailed:       "attach failed: session %d not found or not detached\n",
	MsgNestedWarning:      "sessions should be nested with care\n",
	MsgStatusHistory:      "[history]",
	MsgWindowNew:          "New Window",
	MsgWindowAttached:     "Attached Window",
}

var messagesZH = [msgCount]string{
	MsgHelpTitle:          "muxkit - 轻量级终端复用器",
	MsgHelpVersion:        "版本: %s 作者: LatosProject",
	MsgHelpKeybindings:    "快捷键:",
	MsgHelpKeyDetach:      "  Ctrl+B d   分离当前会话",
	MsgHelpKeySplit:       "  Ctrl+B %   垂直分割窗格",
	MsgHelpKeyNext:        "  Ctrl+B o   切换到下一窗格",
	MsgHelpKeyScrollUp:    "  Ctrl+B [   向上滚动(查看历史)",
	MsgHelpKeyScrollDown:  "  Ctrl+B ]   向下滚动",
	MsgOptList:            "列出所有会话",
	MsgOptAttach:          "连接到指定会话",
	MsgOptKill:            "终止指定会话",
	MsgOptNew:             "创建分离会话",
	MsgErrCommand:         "未知命令\n",
	MsgErrProtocolVersion: "协议版本错误\n",
	MsgSessionFormat:      "%d: %s (进程号 %d)\n",
	MsgNoSessions:         "(无会话)\n",
	MsgSessionKilled:      "已终止会话 %d\n",
	MsgSessionNotFound:    "会话 %d 不存在\n",
	MsgAttachFailed:       "连接失败: 会话 %d 不存在或未分离\n",
	MsgNestedWarning:      "警告: 不建议嵌套运行会话\n",
	MsgStatusHistory:      "[历史]",
	MsgWindowNew:          "新窗口",
	MsgWindowAttached:     "已连接窗口",
}

var current = LangEN

// Init picks the catalog from LANG, LC_ALL and LC_MESSAGES (first set wins).
func Init() {
	lang := os.Getenv("LANG")
	if lang == "" {
		lang = os.Getenv("LC_ALL")
	}
	if lang == "" {
		lang = os.Getenv("LC_MESSAGES")
	}
	if strings.HasPrefix(lang, "zh") {
		current = LangZH
	} else {
		current = LangEN
	}
}

// SetLanguage overrides the detected language.
func SetLanguage(l Language) { current = l }

// T returns the translated string for id, falling back to English.
func T(id MessageID) string {
	if id < 0 || id >= msgCount {
		return ""
	}
	if current == LangZH && messagesZH[id] != "" {
		return messagesZH[id]
	}
	return messagesEN[id]
}
