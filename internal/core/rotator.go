package core

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/RecoveryAshes/EmailFinder/internal/utils"
)

// Rotator 切换出口IP(VPN/代理),在批次开始前和每派发若干目标后调用
type Rotator interface {
	Rotate(ctx context.Context) error
}

// CommandRotator 通过外部命令切换出口
type CommandRotator struct {
	command string
	args    []string
	timeout time.Duration
}

// NewRotator 按配置创建切换器,未配置命令时返回nil
func NewRotator(cfg RotatorConfig) Rotator {
	if !cfg.Enabled() {
		return nil
	}
	r := &CommandRotator{
		command: strings.TrimSpace(cfg.Command),
		args:    cfg.Args,
		timeout: cfg.Timeout,
	}
	if r.timeout <= 0 {
		r.timeout = 30 * time.Second
	}

	if _, err := exec.LookPath(r.command); err != nil {
		utils.Warnf("⚠️  出口切换命令不可用: %s (%v)", r.command, err)
	} else {
		utils.Debugf("出口切换命令: %s %s", r.command, strings.Join(r.args, " "))
	}
	return r
}

// Rotate 执行切换命令,命令退出码非0时返回错误
func (r *CommandRotator) Rotate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.command, r.args...)
	// 命令被杀掉后不再等待其子进程关闭输出
	cmd.WaitDelay = 2 * time.Second
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("出口切换命令执行失败: %w, output: %s", err, strings.TrimSpace(string(output)))
	}

	utils.Debugf("出口切换完成: %s", strings.TrimSpace(string(output)))
	return nil
}
