package network

// recvmmsg returns everything pending in one call.
const nativeBatch = true
