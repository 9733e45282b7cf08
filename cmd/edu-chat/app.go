package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/zhouzirui/edu-agent/internal/config"
	"github.com/zhouzirui/edu-agent/internal/model/chat"
	"github.com/zhouzirui/edu-agent/internal/remote"
	"github.com/zhouzirui/edu-agent/internal/service/fallback"
	"github.com/zhouzirui/edu-agent/internal/service/syncer"
	"github.com/zhouzirui/edu-agent/internal/service/turn"
	"github.com/zhouzirui/edu-agent/internal/session"
)

var (
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	gray   = color.New(color.FgHiBlack)
)

const helpText = `命令:
  /new            开始新对话
  /list           列出已保存的对话
  /open <n|id>    打开对话
  /delete <n|id>  删除对话
  /regen          重新生成最新的回答
  /history        显示当前对话
  /status         查看服务状态
  /quit           退出
其他输入会作为问题发送。`

// chatApp is one client session: the state, its controller and its sync scheduler.
type chatApp struct {
	client *remote.Client
	state  *session.State
	sched  *syncer.Scheduler
	turns  *turn.Controller
	out    io.Writer

	// listed holds the last /list output so conversations can be picked by number.
	listed []chat.Summary
}

func newChatApp(cfg config.ClientConfig, out io.Writer, logger *log.Logger) (*chatApp, error) {
	responder := fallback.Default()
	if cfg.FallbackFile != "" {
		loaded, err := fallback.LoadFile(cfg.FallbackFile)
		if err != nil {
			return nil, fmt.Errorf("loading fallback rules: %w", err)
		}
		responder = loaded
	}

	client := remote.New(cfg.BaseURL, cfg.Timeout)
	state := session.New()
	sched := syncer.New(state, client, logger)
	sched.SetPersistTimeout(cfg.Timeout)

	return &chatApp{
		client: client,
		state:  state,
		sched:  sched,
		turns:  turn.New(state, client, client, responder, sched, logger),
		out:    out,
	}, nil
}

// close waits for outstanding writes so the last answer reaches the server.
func (a *chatApp) close() {
	a.sched.Wait()
}

func (a *chatApp) repl(ctx context.Context, in io.Reader) error {
	a.status(ctx)
	fmt.Fprintln(a.out, helpText)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		green.Fprint(a.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(a.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			a.ask(ctx, line)
			continue
		}

		name, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch name {
		case "/quit", "/exit":
			return nil
		case "/new":
			a.newConversation(ctx)
		case "/list":
			a.list(ctx)
		case "/open":
			a.open(ctx, arg)
		case "/delete":
			a.delete(ctx, arg)
		case "/regen":
			a.regenerate(ctx)
		case "/history":
			a.history()
		case "/status":
			a.status(ctx)
		case "/help":
			fmt.Fprintln(a.out, helpText)
		default:
			yellow.Fprintf(a.out, "未知命令 %s，输入 /help 查看帮助\n", name)
		}
	}
}

func (a *chatApp) ask(ctx context.Context, question string) error {
	result, err := a.turns.Submit(ctx, question)
	if err != nil {
		a.reportTurnError(err)
		return err
	}
	a.printAnswer(result)
	return nil
}

func (a *chatApp) regenerate(ctx context.Context) {
	id, ok := a.state.LatestBotMessageID()
	if !ok {
		yellow.Fprintln(a.out, "当前对话还没有可以重新生成的回答")
		return
	}
	result, err := a.turns.Regenerate(ctx, id)
	if err != nil {
		a.reportTurnError(err)
		return
	}
	a.printAnswer(result)
}

func (a *chatApp) printAnswer(result turn.Turn) {
	cyan.Fprintf(a.out, "老师: %s\n", result.Answer.Text)
	if result.Fallback {
		yellow.Fprintln(a.out, "(服务暂不可用，以上为离线回答)")
	}
}

func (a *chatApp) reportTurnError(err error) {
	switch {
	case errors.Is(err, turn.ErrRequestPending):
		yellow.Fprintln(a.out, "上一个问题还在处理中，请稍候")
	case errors.Is(err, turn.ErrInvalidInput):
		yellow.Fprintln(a.out, "问题不能为空")
	case errors.Is(err, turn.ErrConversationCreateFailed):
		red.Fprintln(a.out, "创建对话失败，请检查服务是否可用")
	case errors.Is(err, turn.ErrSuperseded):
		yellow.Fprintln(a.out, "对话已切换，回答已丢弃")
	default:
		red.Fprintf(a.out, "出错了: %v\n", err)
	}
}

func (a *chatApp) newConversation(ctx context.Context) {
	if err := a.sched.NewConversation(ctx); err != nil {
		yellow.Fprintln(a.out, "新对话将在发送第一个问题时创建")
		return
	}
	green.Fprintln(a.out, "已开始新对话")
}

func (a *chatApp) list(ctx context.Context) {
	a.listed = a.sched.LoadList(ctx)
	if len(a.listed) == 0 {
		gray.Fprintln(a.out, "暂无对话记录")
		return
	}
	active := a.state.ConversationID()
	for i, summary := range a.listed {
		marker := " "
		if summary.ID == active {
			marker = "*"
		}
		fmt.Fprintf(a.out, "%s%2d. %s ", marker, i+1, summary.Title)
		gray.Fprintf(a.out, "(%d 条消息, %s)\n", summary.MessageCount, summary.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
}

// resolve maps a /list number or a raw id to a conversation id.
func (a *chatApp) resolve(arg string) (string, bool) {
	if arg == "" {
		yellow.Fprintln(a.out, "请提供对话编号或 id")
		return "", false
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(a.listed) {
			yellow.Fprintf(a.out, "没有编号为 %d 的对话，先使用 /list\n", n)
			return "", false
		}
		return a.listed[n-1].ID, true
	}
	return arg, true
}

func (a *chatApp) open(ctx context.Context, arg string) {
	id, ok := a.resolve(arg)
	if !ok {
		return
	}
	if err := a.sched.LoadConversation(ctx, id); err != nil {
		red.Fprintln(a.out, "加载对话失败")
		return
	}
	a.history()
}

func (a *chatApp) delete(ctx context.Context, arg string) {
	id, ok := a.resolve(arg)
	if !ok {
		return
	}
	if err := a.sched.DeleteConversation(ctx, id); err != nil {
		red.Fprintln(a.out, "删除对话失败")
		return
	}
	green.Fprintln(a.out, "对话已删除")
}

func (a *chatApp) history() {
	msgs := a.state.Messages()
	if len(msgs) == 0 {
		gray.Fprintln(a.out, "(空对话)")
		return
	}
	for _, msg := range msgs {
		gray.Fprintf(a.out, "[%s] ", msg.Timestamp.Local().Format("15:04:05"))
		if msg.Sender == chat.SenderUser {
			fmt.Fprintf(a.out, "你: %s\n", msg.Text)
		} else {
			cyan.Fprintf(a.out, "老师: %s\n", msg.Text)
		}
	}
}

func (a *chatApp) status(ctx context.Context) bool {
	st, ok := a.sched.CheckStatus(ctx, a.client)
	if !ok {
		yellow.Fprintln(a.out, "无法连接服务，回答将由离线模式提供")
		return false
	}
	green.Fprintf(a.out, "服务状态: %s  模式: %s  版本: %s\n", st.SystemStatus, st.Mode, st.Version)
	return true
}
